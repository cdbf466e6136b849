package journal

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Service struct {
	memories  MemoryRepository
	agenda    AgendaRepository
	reminders ReminderRepository
	patients  PatientChecker
	now       func() time.Time
}

func NewService(m MemoryRepository, a AgendaRepository, r ReminderRepository, patients PatientChecker) *Service {
	return &Service{memories: m, agenda: a, reminders: r, patients: patients, now: time.Now}
}

func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) requirePatient(ctx context.Context, patientID int64) error {
	ok, err := s.patients.Exists(ctx, patientID)
	if err != nil {
		return fmt.Errorf("check patient %d: %w", patientID, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Timeline collects a patient's memories (newest first) together with the
// agenda items and reminders that fall within RecentWindow before now,
// both bounds inclusive.
func (s *Service) Timeline(ctx context.Context, patientID int64, now time.Time) (*Timeline, error) {
	from := now.Add(-RecentWindow)

	memories, err := s.memories.ListAllByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	agenda, err := s.agenda.ListBetween(ctx, patientID, from, now)
	if err != nil {
		return nil, fmt.Errorf("list agenda: %w", err)
	}
	reminders, err := s.reminders.ListBetween(ctx, patientID, from, now)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}

	t := &Timeline{Memories: memories, Agenda: agenda, Reminders: reminders}
	if t.Memories == nil {
		t.Memories = []*Memory{}
	}
	if t.Agenda == nil {
		t.Agenda = []*AgendaItem{}
	}
	if t.Reminders == nil {
		t.Reminders = []*Reminder{}
	}
	return t, nil
}

// -- memories --

func (s *Service) CreateMemory(ctx context.Context, patientID int64, in MemoryInput) (*Memory, error) {
	m := &Memory{
		PatientID:   patientID,
		MemoryType:  optional(in.MemoryType),
		Title:       optional(in.Title),
		ContentText: optional(in.ContentText),
		MediaURL:    optional(in.MediaURL),
		Tags:        optional(in.Tags),
	}
	if m.Title == nil && m.ContentText == nil && m.MediaURL == nil {
		return nil, invalid("title, content_text or media_url is required")
	}
	if m.MediaURL != nil {
		u, err := url.Parse(*m.MediaURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, invalid("media_url must be an absolute http(s) URL")
		}
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}

	now := s.clock()
	m.CreatedAt, m.UpdatedAt = now, now
	if err := s.memories.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) ListMemories(ctx context.Context, patientID int64, limit, offset int) ([]*Memory, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.memories.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DeleteMemory(ctx context.Context, id int64) error {
	return s.memories.Delete(ctx, id)
}

// -- agenda --

func (s *Service) CreateAgendaItem(ctx context.Context, patientID int64, in AgendaInput) (*AgendaItem, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if in.StartTimeUTC == nil {
		return nil, invalid("start_time_utc is required")
	}
	a := &AgendaItem{
		PatientID:    patientID,
		Title:        title,
		Details:      optional(in.Details),
		StartTimeUTC: in.StartTimeUTC.UTC().Truncate(time.Microsecond),
	}
	if in.EndTimeUTC != nil {
		end := in.EndTimeUTC.UTC().Truncate(time.Microsecond)
		if end.Before(a.StartTimeUTC) {
			return nil, invalid("end_time_utc must not be before start_time_utc")
		}
		a.EndTimeUTC = &end
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if err := s.agenda.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) ListAgenda(ctx context.Context, patientID int64, limit, offset int) ([]*AgendaItem, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.agenda.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DeleteAgendaItem(ctx context.Context, id int64) error {
	return s.agenda.Delete(ctx, id)
}

// -- reminders --

func (s *Service) CreateReminder(ctx context.Context, patientID int64, in ReminderInput) (*Reminder, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, invalid("title is required")
	}
	if in.RemindAtUTC == nil {
		return nil, invalid("remind_at_utc is required")
	}
	r := &Reminder{
		PatientID:   patientID,
		Title:       title,
		Message:     optional(in.Message),
		RemindAtUTC: in.RemindAtUTC.UTC().Truncate(time.Microsecond),
	}
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	if err := s.reminders.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListReminders(ctx context.Context, patientID int64, limit, offset int) ([]*Reminder, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.reminders.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) DeleteReminder(ctx context.Context, id int64) error {
	return s.reminders.Delete(ctx, id)
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
