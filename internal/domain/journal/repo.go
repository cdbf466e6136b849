package journal

import (
	"context"
	"time"
)

type MemoryRepository interface {
	Create(ctx context.Context, m *Memory) error
	GetByID(ctx context.Context, id int64) (*Memory, error)
	Delete(ctx context.Context, id int64) error
	// ListByPatient returns memories newest first.
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Memory, int, error)
	ListAllByPatient(ctx context.Context, patientID int64) ([]*Memory, error)
}

type AgendaRepository interface {
	Create(ctx context.Context, a *AgendaItem) error
	Delete(ctx context.Context, id int64) error
	// ListByPatient returns agenda items by start time.
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*AgendaItem, int, error)
	// ListBetween returns items starting in [from, to], by start time.
	ListBetween(ctx context.Context, patientID int64, from, to time.Time) ([]*AgendaItem, error)
}

type ReminderRepository interface {
	Create(ctx context.Context, r *Reminder) error
	Delete(ctx context.Context, id int64) error
	ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Reminder, int, error)
	// ListBetween returns reminders due in [from, to], by due time.
	ListBetween(ctx context.Context, patientID int64, from, to time.Time) ([]*Reminder, error)
}

// PatientChecker reports whether a patient exists.
type PatientChecker interface {
	Exists(ctx context.Context, id int64) (bool, error)
}
