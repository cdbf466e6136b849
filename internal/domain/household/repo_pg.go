package household

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carecircle/carecircle/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type pgRepo struct{ src db.PoolSource }

func (r pgRepo) conn(ctx context.Context) (queryable, error) {
	pool, err := r.src.Pool(ctx)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (r pgRepo) exists(ctx context.Context, sql string, id int64) (bool, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return false, err
	}
	var ok bool
	err = q.QueryRow(ctx, sql, id).Scan(&ok)
	return ok, err
}

func (r pgRepo) delete(ctx context.Context, sql string, id int64) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, sql, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// -- families --

type familyRepoPG struct{ pgRepo }

func NewFamilyRepoPG(src db.PoolSource) FamilyRepository {
	return &familyRepoPG{pgRepo{src: src}}
}

const familyCols = `family_id, family_name, notes, created_at, updated_at`

func scanFamily(row pgx.Row) (*Family, error) {
	var f Family
	if err := row.Scan(&f.ID, &f.Name, &f.Notes, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func (r *familyRepoPG) Create(ctx context.Context, f *Family) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	created, err := scanFamily(q.QueryRow(ctx, `
		INSERT INTO families (family_name, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
		RETURNING `+familyCols,
		f.Name, f.Notes, f.CreatedAt, f.UpdatedAt))
	if err != nil {
		return err
	}
	*f = *created
	return nil
}

func (r *familyRepoPG) GetByID(ctx context.Context, id int64) (*Family, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	f, err := scanFamily(q.QueryRow(ctx, `SELECT `+familyCols+` FROM families WHERE family_id = $1`, id))
	return f, notFound(err)
}

func (r *familyRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM families WHERE family_id = $1)`, id)
}

func (r *familyRepoPG) Update(ctx context.Context, id int64, p FamilyPatch, now time.Time) (*Family, error) {
	b := db.NewSetBuilder(id)
	if p.Name.Set {
		b.Set("family_name", p.Name.Value)
	}
	if p.Notes.Set {
		b.Set("notes", p.Notes.Ptr())
	}
	b.Touch("updated_at", now)

	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	f, err := scanFamily(q.QueryRow(ctx,
		`UPDATE families SET `+b.SQL()+` WHERE family_id = $1 RETURNING `+familyCols, b.Args()...))
	return f, notFound(err)
}

func (r *familyRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM families WHERE family_id = $1`, id)
}

func (r *familyRepoPG) List(ctx context.Context, filter FamilyFilter, limit, offset int) ([]*Family, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	const where = ` WHERE ($1::text = '' OR strpos(lower(family_name), lower($1)) > 0)`

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM families`+where, filter.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+familyCols+` FROM families`+where+
		` ORDER BY family_id LIMIT $2 OFFSET $3`, filter.Search, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanFamily)
	return items, total, err
}

// -- patients --

type patientRepoPG struct{ pgRepo }

func NewPatientRepoPG(src db.PoolSource) PatientRepository {
	return &patientRepoPG{pgRepo{src: src}}
}

const patientCols = `patient_id, family_id, first_name, last_name, date_of_birth, notes, created_at, updated_at`

func scanPatientInto(p *Patient, extra ...any) []any {
	return append([]any{&p.ID, &p.FamilyID, &p.FirstName, &p.LastName, nil, &p.Notes, &p.CreatedAt, &p.UpdatedAt}, extra...)
}

func finishPatient(p *Patient, dob *time.Time) {
	if dob != nil {
		s := dob.Format(DateLayout)
		p.DateOfBirth = &s
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob *time.Time
	dest := scanPatientInto(&p)
	dest[4] = &dob
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finishPatient(&p, dob)
	return &p, nil
}

// dateArg converts a validated YYYY-MM-DD string into a DATE parameter.
func dateArg(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, *s)
	if err != nil {
		return nil, invalid("date_of_birth must be a valid date (YYYY-MM-DD)")
	}
	return &t, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	dob, err := dateArg(p.DateOfBirth)
	if err != nil {
		return err
	}
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	created, err := scanPatient(q.QueryRow(ctx, `
		INSERT INTO patients (family_id, first_name, last_name, date_of_birth, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING `+patientCols,
		p.FamilyID, p.FirstName, p.LastName, dob, p.Notes, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return badReference("family_id")
		}
		return err
	}
	*p = *created
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	p, err := scanPatient(q.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, id))
	return p, notFound(err)
}

func (r *patientRepoPG) GetWithFamily(ctx context.Context, id int64) (*PatientWithFamily, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	var p Patient
	var dob *time.Time
	var familyName string
	dest := scanPatientInto(&p, &familyName)
	dest[4] = &dob
	err = q.QueryRow(ctx, `
		SELECT p.patient_id, p.family_id, p.first_name, p.last_name, p.date_of_birth, p.notes,
			p.created_at, p.updated_at, f.family_name
		FROM patients p
		JOIN families f ON f.family_id = p.family_id
		WHERE p.patient_id = $1`, id).Scan(dest...)
	if err != nil {
		return nil, notFound(err)
	}
	finishPatient(&p, dob)
	return &PatientWithFamily{Patient: &p, FamilyName: familyName}, nil
}

func (r *patientRepoPG) Exists(ctx context.Context, id int64) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, id)
}

func (r *patientRepoPG) Update(ctx context.Context, id int64, p PatientPatch, now time.Time) (*Patient, error) {
	b := db.NewSetBuilder(id)
	if p.FamilyID.Set {
		b.Set("family_id", p.FamilyID.Value)
	}
	if p.FirstName.Set {
		b.Set("first_name", p.FirstName.Value)
	}
	if p.LastName.Set {
		b.Set("last_name", p.LastName.Value)
	}
	if p.DateOfBirth.Set {
		dob, err := dateArg(p.DateOfBirth.Ptr())
		if err != nil {
			return nil, err
		}
		b.Set("date_of_birth", dob)
	}
	if p.Notes.Set {
		b.Set("notes", p.Notes.Ptr())
	}
	b.Touch("updated_at", now)

	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	updated, err := scanPatient(q.QueryRow(ctx,
		`UPDATE patients SET `+b.SQL()+` WHERE patient_id = $1 RETURNING `+patientCols, b.Args()...))
	if db.IsForeignKeyViolation(err) {
		return nil, badReference("family_id")
	}
	return updated, notFound(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM patients WHERE patient_id = $1`, id)
}

func (r *patientRepoPG) List(ctx context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	const where = ` WHERE ($1::text = '' OR strpos(lower(first_name), lower($1)) > 0 OR strpos(lower(last_name), lower($1)) > 0)
		AND ($2::text = '' OR strpos(lower(last_name), lower($2)) > 0)
		AND ($3::bigint IS NULL OR family_id = $3)`
	args := []any{filter.Search, filter.LastName, filter.FamilyID}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patients`+where+
		` ORDER BY patient_id LIMIT $4 OFFSET $5`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanPatient)
	return items, total, err
}

func (r *patientRepoPG) ListByFamily(ctx context.Context, familyID int64) ([]*Patient, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patients WHERE family_id = $1 ORDER BY patient_id`, familyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanPatient)
}

// -- contacts --

type contactRepoPG struct{ pgRepo }

func NewContactRepoPG(src db.PoolSource) ContactRepository {
	return &contactRepoPG{pgRepo{src: src}}
}

const contactCols = `contact_id, family_id, patient_id, relationship, display_name, email, phone, created_at, updated_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	if err := row.Scan(&c.ID, &c.FamilyID, &c.PatientID, &c.Relationship, &c.DisplayName,
		&c.Email, &c.Phone, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func (r *contactRepoPG) Create(ctx context.Context, c *Contact) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	created, err := scanContact(q.QueryRow(ctx, `
		INSERT INTO contacts (family_id, patient_id, relationship, display_name, email, phone, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+contactCols,
		c.FamilyID, c.PatientID, c.Relationship, c.DisplayName, c.Email, c.Phone, c.CreatedAt, c.UpdatedAt))
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return &inputError{kind: ErrInvalidReference, msg: "Invalid family_id or patient_id: not found"}
		}
		return err
	}
	*c = *created
	return nil
}

func (r *contactRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM contacts WHERE contact_id = $1`, id)
}

func (r *contactRepoPG) List(ctx context.Context, filter ContactFilter, limit, offset int) ([]*Contact, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	const where = ` WHERE ($1::bigint IS NULL OR family_id = $1) AND ($2::bigint IS NULL OR patient_id = $2)`
	args := []any{filter.FamilyID, filter.PatientID}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+contactCols+` FROM contacts`+where+
		` ORDER BY contact_id LIMIT $3 OFFSET $4`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanContact)
	return items, total, err
}

func (r *contactRepoPG) ListByFamily(ctx context.Context, familyID int64) ([]*Contact, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+contactCols+` FROM contacts WHERE family_id = $1 ORDER BY contact_id`, familyID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanContact)
}

func (r *contactRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Contact, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+contactCols+` FROM contacts WHERE patient_id = $1 ORDER BY contact_id`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanContact)
}
