package household

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/carecircle/carecircle/internal/domain/journal"
	"github.com/carecircle/carecircle/pkg/patch"
)

// TimelineReader supplies the journal entries shown on the patient detail.
type TimelineReader interface {
	Timeline(ctx context.Context, patientID int64, now time.Time) (*journal.Timeline, error)
}

type Service struct {
	families FamilyRepository
	patients PatientRepository
	contacts ContactRepository
	timeline TimelineReader
	now      func() time.Time
}

func NewService(f FamilyRepository, p PatientRepository, c ContactRepository, timeline TimelineReader) *Service {
	return &Service{families: f, patients: p, contacts: c, timeline: timeline, now: time.Now}
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func validDate(v string) bool {
	if !datePattern.MatchString(v) {
		return false
	}
	_, err := time.Parse(DateLayout, v)
	return err == nil
}

func (s *Service) requireFamily(ctx context.Context, id int64) error {
	ok, err := s.families.Exists(ctx, id)
	if err != nil {
		return fmt.Errorf("check family %d: %w", id, err)
	}
	if !ok {
		return badReference("family_id")
	}
	return nil
}

// -- families --

func (s *Service) CreateFamily(ctx context.Context, in FamilyInput) (*Family, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("family_name is required")
	}
	now := s.clock()
	f := &Family{Name: name, Notes: optional(in.Notes), CreatedAt: now, UpdatedAt: now}
	if err := s.families.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("create family: %w", err)
	}
	return f, nil
}

func (s *Service) GetFamily(ctx context.Context, id int64) (*Family, error) {
	return s.families.GetByID(ctx, id)
}

// FamilyDetail returns the family with its patients and contacts, each
// ordered by id.
func (s *Service) FamilyDetail(ctx context.Context, id int64) (*FamilyDetail, error) {
	f, err := s.families.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	patients, err := s.patients.ListByFamily(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	contacts, err := s.contacts.ListByFamily(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if patients == nil {
		patients = []*Patient{}
	}
	if contacts == nil {
		contacts = []*Contact{}
	}
	return &FamilyDetail{Family: f, Patients: patients, Contacts: contacts}, nil
}

func (s *Service) UpdateFamily(ctx context.Context, id int64, p FamilyPatch) (*Family, error) {
	if p.Empty() {
		return nil, errNothingToUpdate
	}
	if p.Name.Set {
		p.Name.Value = strings.TrimSpace(p.Name.Value)
		if p.Name.Null || p.Name.Value == "" {
			return nil, invalid("family_name must not be empty")
		}
	}
	trimField(&p.Notes)
	return s.families.Update(ctx, id, p, s.clock())
}

func (s *Service) DeleteFamily(ctx context.Context, id int64) error {
	return s.families.Delete(ctx, id)
}

func (s *Service) ListFamilies(ctx context.Context, filter FamilyFilter, limit, offset int) ([]*Family, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	return s.families.List(ctx, filter, limit, offset)
}

// -- patients --

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	first := strings.TrimSpace(in.FirstName)
	last := strings.TrimSpace(in.LastName)
	if in.FamilyID <= 0 || first == "" || last == "" {
		return nil, invalid("family_id, first_name and last_name are required")
	}
	dob := optional(in.DateOfBirth)
	if dob != nil && !validDate(*dob) {
		return nil, invalid("date_of_birth must be a valid date (YYYY-MM-DD)")
	}
	if err := s.requireFamily(ctx, in.FamilyID); err != nil {
		return nil, err
	}

	now := s.clock()
	p := &Patient{
		FamilyID:    in.FamilyID,
		FirstName:   first,
		LastName:    last,
		DateOfBirth: dob,
		Notes:       optional(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// PatientDetail returns the patient with family name, contacts, all memories
// and the agenda items and reminders of the last week.
func (s *Service) PatientDetail(ctx context.Context, id int64) (*PatientDetail, error) {
	p, err := s.patients.GetWithFamily(ctx, id)
	if err != nil {
		return nil, err
	}
	contacts, err := s.contacts.ListByPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	if contacts == nil {
		contacts = []*Contact{}
	}
	t, err := s.timeline.Timeline(ctx, id, s.clock())
	if err != nil {
		return nil, err
	}
	return &PatientDetail{
		Patient:   p,
		Contacts:  contacts,
		Memories:  t.Memories,
		Agenda:    t.Agenda,
		Reminders: t.Reminders,
	}, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id int64, p PatientPatch) (*Patient, error) {
	if p.Empty() {
		return nil, errNothingToUpdate
	}
	if p.FamilyID.Set {
		if p.FamilyID.Null || p.FamilyID.Value <= 0 {
			return nil, invalid("family_id must be a positive integer")
		}
		if err := s.requireFamily(ctx, p.FamilyID.Value); err != nil {
			return nil, err
		}
	}
	for _, f := range []struct {
		name  string
		field *patch.Field[string]
	}{{"first_name", &p.FirstName}, {"last_name", &p.LastName}} {
		if !f.field.Set {
			continue
		}
		f.field.Value = strings.TrimSpace(f.field.Value)
		if f.field.Null || f.field.Value == "" {
			return nil, invalid("%s must not be empty", f.name)
		}
	}
	trimField(&p.DateOfBirth)
	if p.DateOfBirth.Set && !p.DateOfBirth.Null && !validDate(p.DateOfBirth.Value) {
		return nil, invalid("date_of_birth must be a valid date (YYYY-MM-DD)")
	}
	trimField(&p.Notes)
	return s.patients.Update(ctx, id, p, s.clock())
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.LastName = strings.TrimSpace(filter.LastName)
	return s.patients.List(ctx, filter, limit, offset)
}

// -- contacts --

func (s *Service) CreateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	name := strings.TrimSpace(in.DisplayName)
	if in.FamilyID <= 0 || name == "" {
		return nil, invalid("family_id and display_name are required")
	}
	email := optional(in.Email)
	if email != nil {
		if _, err := mail.ParseAddress(*email); err != nil {
			return nil, invalid("email must be a valid address")
		}
	}
	if err := s.requireFamily(ctx, in.FamilyID); err != nil {
		return nil, err
	}
	if in.PatientID != nil {
		p, err := s.patients.GetByID(ctx, *in.PatientID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, badReference("patient_id")
			}
			return nil, fmt.Errorf("check patient %d: %w", *in.PatientID, err)
		}
		if p.FamilyID != in.FamilyID {
			return nil, invalid("patient_id does not belong to family_id")
		}
	}

	now := s.clock()
	c := &Contact{
		FamilyID:     in.FamilyID,
		PatientID:    in.PatientID,
		Relationship: optional(in.Relationship),
		DisplayName:  name,
		Email:        email,
		Phone:        optional(in.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.contacts.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) DeleteContact(ctx context.Context, id int64) error {
	return s.contacts.Delete(ctx, id)
}

func (s *Service) ListContacts(ctx context.Context, filter ContactFilter, limit, offset int) ([]*Contact, int, error) {
	return s.contacts.List(ctx, filter, limit, offset)
}

// optional trims v and maps blank to nil.
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// trimField trims a present string and turns a blank one into null.
func trimField(f *patch.Field[string]) {
	if !f.Set || f.Null {
		return
	}
	f.Value = strings.TrimSpace(f.Value)
	if f.Value == "" {
		f.Null = true
	}
}
