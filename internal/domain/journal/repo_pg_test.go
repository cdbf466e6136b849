package journal

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carecircle/carecircle/internal/platform/db/dbtest"
)

func TestMain(m *testing.M) {
	dbtest.Main(m)
}

type pgEnv struct {
	memories  MemoryRepository
	agenda    AgendaRepository
	reminders ReminderRepository
	patientID int64
	other     int64
}

func newPGEnv(t *testing.T) *pgEnv {
	t.Helper()
	src := dbtest.Open(t)
	ctx := context.Background()
	pool, err := src.Pool(ctx)
	require.NoError(t, err)

	var familyID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO families (family_name) VALUES ('Silva') RETURNING family_id`).Scan(&familyID))
	env := &pgEnv{
		memories:  NewMemoryRepoPG(src),
		agenda:    NewAgendaRepoPG(src),
		reminders: NewReminderRepoPG(src),
	}
	for _, id := range []*int64{&env.patientID, &env.other} {
		require.NoError(t, pool.QueryRow(ctx,
			`INSERT INTO patients (family_id, first_name, last_name) VALUES ($1, 'Ana', 'Silva') RETURNING patient_id`,
			familyID).Scan(id))
	}
	return env
}

func TestMemoryRepoPG_NewestFirstAndPaging(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		m := &Memory{PatientID: env.patientID, Title: strPtr("m"), CreatedAt: fixedNow, UpdatedAt: fixedNow}
		require.NoError(t, env.memories.Create(ctx, m))
		ids = append(ids, m.ID)
	}
	require.NoError(t, env.memories.Create(ctx, &Memory{PatientID: env.other, Title: strPtr("x"),
		CreatedAt: fixedNow, UpdatedAt: fixedNow}))

	var got []int64
	for offset := 0; offset < 5; offset += 2 {
		page, total, err := env.memories.ListByPatient(ctx, env.patientID, 2, offset)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
		for _, m := range page {
			got = append(got, m.ID)
		}
	}
	assert.Equal(t, []int64{ids[4], ids[3], ids[2], ids[1], ids[0]}, got)

	page, total, err := env.memories.ListByPatient(ctx, env.patientID, 2, math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Empty(t, page)

	all, err := env.memories.ListAllByPatient(ctx, env.patientID)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryRepoPG_GetAndDeleteTwice(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()

	m := &Memory{PatientID: env.patientID, MemoryType: strPtr("photo"), MediaURL: strPtr("https://example.org/a.jpg"),
		Tags: strPtr("family,summer"), CreatedAt: fixedNow, UpdatedAt: fixedNow}
	require.NoError(t, env.memories.Create(ctx, m))

	got, err := env.memories.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)
	assert.Nil(t, got.Title)

	require.NoError(t, env.memories.Delete(ctx, m.ID))
	assert.ErrorIs(t, env.memories.Delete(ctx, m.ID), ErrNotFound)
	_, err = env.memories.GetByID(ctx, m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepoPG_UnknownPatient(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	const missing = 4242

	errs := map[string]error{
		"memory":   env.memories.Create(ctx, &Memory{PatientID: missing, Title: strPtr("m"), CreatedAt: fixedNow, UpdatedAt: fixedNow}),
		"agenda":   env.agenda.Create(ctx, &AgendaItem{PatientID: missing, Title: "Doctor", StartTimeUTC: fixedNow}),
		"reminder": env.reminders.Create(ctx, &Reminder{PatientID: missing, Title: "Pills", RemindAtUTC: fixedNow}),
	}
	for name, err := range errs {
		require.ErrorIs(t, err, ErrInvalidReference, name)
		assert.Equal(t, "Invalid patient_id: not found", err.Error(), name)
	}
}

func TestAgendaRepoPG_ListBetweenIsInclusive(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	from := fixedNow.Add(-RecentWindow)

	for _, start := range []time.Time{fixedNow.Add(time.Microsecond), fixedNow, from, from.Add(-time.Microsecond)} {
		require.NoError(t, env.agenda.Create(ctx, &AgendaItem{PatientID: env.patientID, Title: "Visit", StartTimeUTC: start}))
	}
	require.NoError(t, env.agenda.Create(ctx, &AgendaItem{PatientID: env.other, Title: "Visit", StartTimeUTC: fixedNow}))

	items, err := env.agenda.ListBetween(ctx, env.patientID, from, fixedNow)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartTimeUTC.Equal(from))
	assert.True(t, items[1].StartTimeUTC.Equal(fixedNow))

	page, total, err := env.agenda.ListByPatient(ctx, env.patientID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.True(t, page[0].StartTimeUTC.Before(page[1].StartTimeUTC), "agenda lists by start time")

	require.NoError(t, env.agenda.Delete(ctx, page[0].ID))
	assert.ErrorIs(t, env.agenda.Delete(ctx, page[0].ID), ErrNotFound)
}

func TestReminderRepoPG_ListBetweenIsInclusive(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	from := fixedNow.Add(-RecentWindow)

	for _, at := range []time.Time{from.Add(-time.Microsecond), fixedNow, from, fixedNow.Add(time.Microsecond)} {
		require.NoError(t, env.reminders.Create(ctx, &Reminder{PatientID: env.patientID, Title: "Pills", RemindAtUTC: at}))
	}

	items, err := env.reminders.ListBetween(ctx, env.patientID, from, fixedNow)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].RemindAtUTC.Equal(from))
	assert.True(t, items[1].RemindAtUTC.Equal(fixedNow))

	page, total, err := env.reminders.ListByPatient(ctx, env.patientID, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.True(t, page[0].RemindAtUTC.Equal(fixedNow.Add(time.Microsecond)))

	require.NoError(t, env.reminders.Delete(ctx, page[0].ID))
	assert.ErrorIs(t, env.reminders.Delete(ctx, page[0].ID), ErrNotFound)
}

func TestService_TimelineAgainstServer(t *testing.T) {
	env := newPGEnv(t)
	ctx := context.Background()
	svc := NewService(env.memories, env.agenda, env.reminders, fakePatients{env.patientID: true})
	svc.now = func() time.Time { return fixedNow }

	old := fixedNow.Add(-RecentWindow - time.Second)
	recent := fixedNow.Add(-time.Hour)
	_, err := svc.CreateAgendaItem(ctx, env.patientID, AgendaInput{Title: "Old", StartTimeUTC: &old})
	require.NoError(t, err)
	_, err = svc.CreateAgendaItem(ctx, env.patientID, AgendaInput{Title: "Recent", StartTimeUTC: &recent})
	require.NoError(t, err)

	tl, err := svc.Timeline(ctx, env.patientID, fixedNow)
	require.NoError(t, err)
	require.Len(t, tl.Agenda, 1)
	assert.Equal(t, "Recent", tl.Agenda[0].Title)
	assert.NotNil(t, tl.Memories)
	assert.NotNil(t, tl.Reminders)
}
