package journal

import "time"

// RecentWindow is how far back the patient detail view looks for agenda
// items and reminders.
const RecentWindow = 7 * 24 * time.Hour

// Memory maps to the memories table: a note, photo or story kept for a
// patient.
type Memory struct {
	ID          int64     `db:"memory_id" json:"memory_id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	MemoryType  *string   `db:"memory_type" json:"memory_type"`
	Title       *string   `db:"title" json:"title"`
	ContentText *string   `db:"content_text" json:"content_text"`
	MediaURL    *string   `db:"media_url" json:"media_url"`
	Tags        *string   `db:"tags" json:"tags"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AgendaItem maps to the agenda table.
type AgendaItem struct {
	ID           int64      `db:"agenda_id" json:"agenda_id"`
	PatientID    int64      `db:"patient_id" json:"patient_id"`
	Title        string     `db:"title" json:"title"`
	Details      *string    `db:"details" json:"details"`
	StartTimeUTC time.Time  `db:"start_time_utc" json:"start_time_utc"`
	EndTimeUTC   *time.Time `db:"end_time_utc" json:"end_time_utc"`
}

// Reminder maps to the reminders table.
type Reminder struct {
	ID          int64     `db:"reminder_id" json:"reminder_id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	Title       string    `db:"title" json:"title"`
	Message     *string   `db:"message" json:"message"`
	RemindAtUTC time.Time `db:"remind_at_utc" json:"remind_at_utc"`
}

// Timeline is the journal part of the patient detail view.
type Timeline struct {
	Memories  []*Memory     `json:"memories"`
	Agenda    []*AgendaItem `json:"agenda"`
	Reminders []*Reminder   `json:"reminders"`
}

// MemoryInput is the body of a memory create request.
type MemoryInput struct {
	MemoryType  *string `json:"memory_type"`
	Title       *string `json:"title"`
	ContentText *string `json:"content_text"`
	MediaURL    *string `json:"media_url"`
	Tags        *string `json:"tags"`
}

// AgendaInput is the body of an agenda create request.
type AgendaInput struct {
	Title        string     `json:"title"`
	Details      *string    `json:"details"`
	StartTimeUTC *time.Time `json:"start_time_utc"`
	EndTimeUTC   *time.Time `json:"end_time_utc"`
}

// ReminderInput is the body of a reminder create request.
type ReminderInput struct {
	Title       string     `json:"title"`
	Message     *string    `json:"message"`
	RemindAtUTC *time.Time `json:"remind_at_utc"`
}
