package household

import (
	"context"
	"time"
)

type FamilyRepository interface {
	Create(ctx context.Context, f *Family) error
	GetByID(ctx context.Context, id int64) (*Family, error)
	Exists(ctx context.Context, id int64) (bool, error)
	// Update applies the patch and stamps updated_at, returning the new row.
	Update(ctx context.Context, id int64, p FamilyPatch, now time.Time) (*Family, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter FamilyFilter, limit, offset int) ([]*Family, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	GetWithFamily(ctx context.Context, id int64) (*PatientWithFamily, error)
	Exists(ctx context.Context, id int64) (bool, error)
	Update(ctx context.Context, id int64, p PatientPatch, now time.Time) (*Patient, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*Patient, error)
}

type ContactRepository interface {
	Create(ctx context.Context, c *Contact) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ContactFilter, limit, offset int) ([]*Contact, int, error)
	ListByFamily(ctx context.Context, familyID int64) ([]*Contact, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*Contact, error)
}
