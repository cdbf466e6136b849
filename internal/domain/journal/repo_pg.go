package journal

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

func (r pgRepo) count(ctx context.Context, q queryable, sql string, args ...any) (int, error) {
	var total int
	err := q.QueryRow(ctx, sql, args...).Scan(&total)
	return total, err
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

func mapWriteErr(err error) error {
	if db.IsForeignKeyViolation(err) {
		return badReference("patient_id")
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

// -- memories --

type memoryRepoPG struct{ pgRepo }

func NewMemoryRepoPG(src db.PoolSource) MemoryRepository {
	return &memoryRepoPG{pgRepo{src: src}}
}

const memoryCols = `memory_id, patient_id, memory_type, title, content_text, media_url, tags, created_at, updated_at`

func scanMemory(row pgx.Row) (*Memory, error) {
	var m Memory
	err := row.Scan(&m.ID, &m.PatientID, &m.MemoryType, &m.Title, &m.ContentText,
		&m.MediaURL, &m.Tags, &m.CreatedAt, &m.UpdatedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, err
}

func (r *memoryRepoPG) Create(ctx context.Context, m *Memory) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	row := q.QueryRow(ctx, `
		INSERT INTO memories (patient_id, memory_type, title, content_text, media_url, tags, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING `+memoryCols,
		m.PatientID, m.MemoryType, m.Title, m.ContentText, m.MediaURL, m.Tags, m.CreatedAt, m.UpdatedAt)
	created, err := scanMemory(row)
	if err != nil {
		return mapWriteErr(err)
	}
	*m = *created
	return nil
}

func (r *memoryRepoPG) GetByID(ctx context.Context, id int64) (*Memory, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	m, err := scanMemory(q.QueryRow(ctx, `SELECT `+memoryCols+` FROM memories WHERE memory_id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *memoryRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM memories WHERE memory_id = $1`, id)
}

func (r *memoryRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Memory, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.count(ctx, q, `SELECT COUNT(*) FROM memories WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+memoryCols+` FROM memories WHERE patient_id = $1
		ORDER BY memory_id DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanMemory)
	return items, total, err
}

func (r *memoryRepoPG) ListAllByPatient(ctx context.Context, patientID int64) ([]*Memory, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+memoryCols+` FROM memories WHERE patient_id = $1 ORDER BY memory_id DESC`, patientID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanMemory)
}

// -- agenda --

type agendaRepoPG struct{ pgRepo }

func NewAgendaRepoPG(src db.PoolSource) AgendaRepository {
	return &agendaRepoPG{pgRepo{src: src}}
}

const agendaCols = `agenda_id, patient_id, title, details, start_time_utc, end_time_utc`

func scanAgenda(row pgx.Row) (*AgendaItem, error) {
	var a AgendaItem
	err := row.Scan(&a.ID, &a.PatientID, &a.Title, &a.Details, &a.StartTimeUTC, &a.EndTimeUTC)
	a.StartTimeUTC = a.StartTimeUTC.UTC()
	if a.EndTimeUTC != nil {
		end := a.EndTimeUTC.UTC()
		a.EndTimeUTC = &end
	}
	return &a, err
}

func (r *agendaRepoPG) Create(ctx context.Context, a *AgendaItem) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	row := q.QueryRow(ctx, `
		INSERT INTO agenda (patient_id, title, details, start_time_utc, end_time_utc)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING `+agendaCols,
		a.PatientID, a.Title, a.Details, a.StartTimeUTC, a.EndTimeUTC)
	created, err := scanAgenda(row)
	if err != nil {
		return mapWriteErr(err)
	}
	*a = *created
	return nil
}

func (r *agendaRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM agenda WHERE agenda_id = $1`, id)
}

func (r *agendaRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*AgendaItem, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.count(ctx, q, `SELECT COUNT(*) FROM agenda WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+agendaCols+` FROM agenda WHERE patient_id = $1
		ORDER BY start_time_utc, agenda_id LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanAgenda)
	return items, total, err
}

func (r *agendaRepoPG) ListBetween(ctx context.Context, patientID int64, from, to time.Time) ([]*AgendaItem, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+agendaCols+` FROM agenda
		WHERE patient_id = $1 AND start_time_utc >= $2 AND start_time_utc <= $3
		ORDER BY start_time_utc, agenda_id`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanAgenda)
}

// -- reminders --

type reminderRepoPG struct{ pgRepo }

func NewReminderRepoPG(src db.PoolSource) ReminderRepository {
	return &reminderRepoPG{pgRepo{src: src}}
}

const reminderCols = `reminder_id, patient_id, title, message, remind_at_utc`

func scanReminder(row pgx.Row) (*Reminder, error) {
	var rm Reminder
	err := row.Scan(&rm.ID, &rm.PatientID, &rm.Title, &rm.Message, &rm.RemindAtUTC)
	rm.RemindAtUTC = rm.RemindAtUTC.UTC()
	return &rm, err
}

func (r *reminderRepoPG) Create(ctx context.Context, rm *Reminder) error {
	q, err := r.conn(ctx)
	if err != nil {
		return err
	}
	row := q.QueryRow(ctx, `
		INSERT INTO reminders (patient_id, title, message, remind_at_utc)
		VALUES ($1,$2,$3,$4)
		RETURNING `+reminderCols,
		rm.PatientID, rm.Title, rm.Message, rm.RemindAtUTC)
	created, err := scanReminder(row)
	if err != nil {
		return mapWriteErr(err)
	}
	*rm = *created
	return nil
}

func (r *reminderRepoPG) Delete(ctx context.Context, id int64) error {
	return r.delete(ctx, `DELETE FROM reminders WHERE reminder_id = $1`, id)
}

func (r *reminderRepoPG) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Reminder, int, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, 0, err
	}
	total, err := r.count(ctx, q, `SELECT COUNT(*) FROM reminders WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+reminderCols+` FROM reminders WHERE patient_id = $1
		ORDER BY remind_at_utc, reminder_id LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows, scanReminder)
	return items, total, err
}

func (r *reminderRepoPG) ListBetween(ctx context.Context, patientID int64, from, to time.Time) ([]*Reminder, error) {
	q, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, `SELECT `+reminderCols+` FROM reminders
		WHERE patient_id = $1 AND remind_at_utc >= $2 AND remind_at_utc <= $3
		ORDER BY remind_at_utc, reminder_id`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanReminder)
}
