package household

import (
	"time"

	"github.com/carecircle/carecircle/internal/domain/journal"
	"github.com/carecircle/carecircle/pkg/patch"
)

// DateLayout is the wire format of date_of_birth.
const DateLayout = "2006-01-02"

// Family maps to the families table.
type Family struct {
	ID        int64     `db:"family_id" json:"family_id"`
	Name      string    `db:"family_name" json:"family_name"`
	Notes     *string   `db:"notes" json:"notes"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Patient maps to the patients table. DateOfBirth is "YYYY-MM-DD" or nil.
type Patient struct {
	ID          int64     `db:"patient_id" json:"patient_id"`
	FamilyID    int64     `db:"family_id" json:"family_id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth *string   `db:"date_of_birth" json:"date_of_birth"`
	Notes       *string   `db:"notes" json:"notes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// PatientWithFamily is a patient joined with its family's name.
type PatientWithFamily struct {
	*Patient
	FamilyName string `json:"family_name"`
}

// Contact maps to the contacts table.
type Contact struct {
	ID           int64     `db:"contact_id" json:"contact_id"`
	FamilyID     int64     `db:"family_id" json:"family_id"`
	PatientID    *int64    `db:"patient_id" json:"patient_id"`
	Relationship *string   `db:"relationship" json:"relationship"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        *string   `db:"email" json:"email"`
	Phone        *string   `db:"phone" json:"phone"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FamilyDetail is the aggregate returned by GET /api/families/:id.
type FamilyDetail struct {
	Family   *Family    `json:"family"`
	Patients []*Patient `json:"patients"`
	Contacts []*Contact `json:"contacts"`
}

// PatientDetail is the aggregate returned by GET /api/patients/:id.
type PatientDetail struct {
	Patient   *PatientWithFamily    `json:"patient"`
	Contacts  []*Contact            `json:"contacts"`
	Memories  []*journal.Memory     `json:"memories"`
	Agenda    []*journal.AgendaItem `json:"agenda"`
	Reminders []*journal.Reminder   `json:"reminders"`
}

// -- request bodies --

type FamilyInput struct {
	Name  string  `json:"family_name"`
	Notes *string `json:"notes"`
}

type PatientInput struct {
	FamilyID    int64   `json:"family_id"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	DateOfBirth *string `json:"date_of_birth"`
	Notes       *string `json:"notes"`
}

type ContactInput struct {
	FamilyID     int64   `json:"family_id"`
	PatientID    *int64  `json:"patient_id"`
	Relationship *string `json:"relationship"`
	DisplayName  string  `json:"display_name"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
}

// FamilyPatch lists the family columns a partial update may touch.
type FamilyPatch struct {
	Name  patch.Field[string] `json:"family_name"`
	Notes patch.Field[string] `json:"notes"`
}

// Empty reports whether no updatable field was supplied.
func (p FamilyPatch) Empty() bool {
	return !p.Name.Set && !p.Notes.Set
}

// PatientPatch lists the patient columns a partial update may touch.
type PatientPatch struct {
	FamilyID    patch.Field[int64]  `json:"family_id"`
	FirstName   patch.Field[string] `json:"first_name"`
	LastName    patch.Field[string] `json:"last_name"`
	DateOfBirth patch.Field[string] `json:"date_of_birth"`
	Notes       patch.Field[string] `json:"notes"`
}

// Empty reports whether no updatable field was supplied.
func (p PatientPatch) Empty() bool {
	return !p.FamilyID.Set && !p.FirstName.Set && !p.LastName.Set &&
		!p.DateOfBirth.Set && !p.Notes.Set
}

// -- list filters --

type FamilyFilter struct {
	Search string
}

type PatientFilter struct {
	Search   string
	LastName string
	FamilyID *int64
}

type ContactFilter struct {
	FamilyID  *int64
	PatientID *int64
}
