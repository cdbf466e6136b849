package household

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/carecircle/carecircle/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the aggregate reads and family update on api (/api)
// and the CRUD endpoints on v1 (/api/v1).
func (h *Handler) RegisterRoutes(api, v1 *echo.Group) {
	api.GET("/families/:id", h.GetFamilyDetail)
	api.PUT("/families/:id", h.UpdateFamily)
	api.PATCH("/families/:id", h.UpdateFamily)
	api.GET("/patients/:id", h.GetPatientDetail)

	v1.GET("/families", h.ListFamilies)
	v1.POST("/families", h.CreateFamily)
	v1.GET("/families/:id", h.GetFamily)
	v1.PATCH("/families/:id", h.UpdateFamily)
	v1.DELETE("/families/:id", h.DeleteFamily)

	v1.GET("/patients", h.ListPatients)
	v1.POST("/patients", h.CreatePatient)
	v1.GET("/patients/:id", h.GetPatient)
	v1.PATCH("/patients/:id", h.UpdatePatient)
	v1.DELETE("/patients/:id", h.DeletePatient)

	v1.GET("/contacts", h.ListContacts)
	v1.POST("/contacts", h.CreateContact)
	v1.DELETE("/contacts/:id", h.DeleteContact)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
	}
	return id, nil
}

// queryID reads an optional integer query parameter; absent or blank is nil.
func queryID(c echo.Context, name string) (*int64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+name)
	}
	return &id, nil
}

func toHTTPError(err error, notFound string) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, notFound)
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidReference):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}

func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	return nil
}

// -- families --

func (h *Handler) CreateFamily(c echo.Context) error {
	var in FamilyInput
	if err := bind(c, &in); err != nil {
		return err
	}
	f, err := h.svc.CreateFamily(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *Handler) GetFamily(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	f, err := h.svc.GetFamily(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) GetFamilyDetail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.FamilyDetail(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateFamily(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p FamilyPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	f, err := h.svc.UpdateFamily(c.Request().Context(), id, p)
	if err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.JSON(http.StatusOK, f)
}

func (h *Handler) DeleteFamily(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteFamily(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListFamilies(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := FamilyFilter{Search: c.QueryParam("search")}
	items, total, err := h.svc.ListFamilies(c.Request().Context(), filter, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Family not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

// -- patients --

func (h *Handler) CreatePatient(c echo.Context) error {
	var in PatientInput
	if err := bind(c, &in); err != nil {
		return err
	}
	p, err := h.svc.CreatePatient(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetPatientDetail(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.PatientDetail(c.Request().Context(), id)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p PatientPatch
	if err := bind(c, &p); err != nil {
		return err
	}
	updated, err := h.svc.UpdatePatient(c.Request().Context(), id, p)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	familyID, err := queryID(c, "familyId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	filter := PatientFilter{
		Search:   c.QueryParam("search"),
		LastName: c.QueryParam("lastName"),
		FamilyID: familyID,
	}
	items, total, err := h.svc.ListPatients(c.Request().Context(), filter, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

// -- contacts --

func (h *Handler) CreateContact(c echo.Context) error {
	var in ContactInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ct, err := h.svc.CreateContact(c.Request().Context(), in)
	if err != nil {
		return toHTTPError(err, "Contact not found")
	}
	return c.JSON(http.StatusCreated, ct)
}

func (h *Handler) DeleteContact(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteContact(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Contact not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListContacts(c echo.Context) error {
	familyID, err := queryID(c, "familyId")
	if err != nil {
		return err
	}
	patientID, err := queryID(c, "patientId")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	filter := ContactFilter{FamilyID: familyID, PatientID: patientID}
	items, total, err := h.svc.ListContacts(c.Request().Context(), filter, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Contact not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}
