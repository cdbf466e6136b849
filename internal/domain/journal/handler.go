package journal

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/carecircle/carecircle/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the journal endpoints on the /api/v1 group.
func (h *Handler) RegisterRoutes(v1 *echo.Group) {
	v1.GET("/patients/:id/memories", h.ListMemories)
	v1.POST("/patients/:id/memories", h.CreateMemory)
	v1.DELETE("/memories/:id", h.DeleteMemory)

	v1.GET("/patients/:id/agenda", h.ListAgenda)
	v1.POST("/patients/:id/agenda", h.CreateAgendaItem)
	v1.DELETE("/agenda/:id", h.DeleteAgendaItem)

	v1.GET("/patients/:id/reminders", h.ListReminders)
	v1.POST("/patients/:id/reminders", h.CreateReminder)
	v1.DELETE("/reminders/:id", h.DeleteReminder)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid id")
	}
	return id, nil
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

// -- memories --

func (h *Handler) CreateMemory(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var in MemoryInput
	if err := bind(c, &in); err != nil {
		return err
	}
	m, err := h.svc.CreateMemory(c.Request().Context(), patientID, in)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) ListMemories(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListMemories(c.Request().Context(), patientID, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

func (h *Handler) DeleteMemory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteMemory(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Memory not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- agenda --

func (h *Handler) CreateAgendaItem(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var in AgendaInput
	if err := bind(c, &in); err != nil {
		return err
	}
	a, err := h.svc.CreateAgendaItem(c.Request().Context(), patientID, in)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ListAgenda(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListAgenda(c.Request().Context(), patientID, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

func (h *Handler) DeleteAgendaItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAgendaItem(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Agenda item not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// -- reminders --

func (h *Handler) CreateReminder(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	var in ReminderInput
	if err := bind(c, &in); err != nil {
		return err
	}
	r, err := h.svc.CreateReminder(c.Request().Context(), patientID, in)
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) ListReminders(c echo.Context) error {
	patientID, err := parseID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListReminders(c.Request().Context(), patientID, pg.Limit(), pg.Offset())
	if err != nil {
		return toHTTPError(err, "Patient not found")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total))
}

func (h *Handler) DeleteReminder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteReminder(c.Request().Context(), id); err != nil {
		return toHTTPError(err, "Reminder not found")
	}
	return c.NoContent(http.StatusNoContent)
}
