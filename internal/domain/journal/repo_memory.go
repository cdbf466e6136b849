package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/carecircle/carecircle/pkg/pagination"
)

// MemoryStore keeps journal entries in process memory. It backs STORE=memory
// and the handler tests.
type MemoryStore struct {
	mu        sync.RWMutex
	memories  map[int64]*Memory
	agenda    map[int64]*AgendaItem
	reminders map[int64]*Reminder
	seq       struct{ memory, agenda, reminder int64 }
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		memories:  make(map[int64]*Memory),
		agenda:    make(map[int64]*AgendaItem),
		reminders: make(map[int64]*Reminder),
	}
}

func (s *MemoryStore) Memories() MemoryRepository { return (*memoryRepoMem)(s) }
func (s *MemoryStore) Agenda() AgendaRepository { return (*agendaRepoMem)(s) }
func (s *MemoryStore) Reminders() ReminderRepository { return (*reminderRepoMem)(s) }

// page slices items to [offset, offset+limit).
func page[T any](items []*T, limit, offset int) []*T {
	start, end := pagination.Bounds(len(items), limit, offset)
	return items[start:end]
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && !t.After(to)
}

// -- memories --

type memoryRepoMem MemoryStore

func (r *memoryRepoMem) Create(_ context.Context, m *Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.memory++
	m.ID = r.seq.memory
	cp := *m
	r.memories[m.ID] = &cp
	return nil
}

func (r *memoryRepoMem) GetByID(_ context.Context, id int64) (*Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memories[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *memoryRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.memories[id]; !ok {
		return ErrNotFound
	}
	delete(r.memories, id)
	return nil
}

func (r *memoryRepoMem) ListByPatient(ctx context.Context, patientID int64, limit, offset int) ([]*Memory, int, error) {
	all, _ := r.ListAllByPatient(ctx, patientID)
	return page(all, limit, offset), len(all), nil
}

func (r *memoryRepoMem) ListAllByPatient(_ context.Context, patientID int64) ([]*Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Memory
	for _, m := range r.memories {
		if m.PatientID == patientID {
			cp := *m
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

// -- agenda --

type agendaRepoMem MemoryStore

func (r *agendaRepoMem) Create(_ context.Context, a *AgendaItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.agenda++
	a.ID = r.seq.agenda
	cp := *a
	r.agenda[a.ID] = &cp
	return nil
}

func (r *agendaRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agenda[id]; !ok {
		return ErrNotFound
	}
	delete(r.agenda, id)
	return nil
}

func (r *agendaRepoMem) filter(patientID int64, keep func(*AgendaItem) bool) []*AgendaItem {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*AgendaItem
	for _, a := range r.agenda {
		if a.PatientID == patientID && keep(a) {
			cp := *a
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].StartTimeUTC.Equal(items[j].StartTimeUTC) {
			return items[i].StartTimeUTC.Before(items[j].StartTimeUTC)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (r *agendaRepoMem) ListByPatient(_ context.Context, patientID int64, limit, offset int) ([]*AgendaItem, int, error) {
	all := r.filter(patientID, func(*AgendaItem) bool { return true })
	return page(all, limit, offset), len(all), nil
}

func (r *agendaRepoMem) ListBetween(_ context.Context, patientID int64, from, to time.Time) ([]*AgendaItem, error) {
	return r.filter(patientID, func(a *AgendaItem) bool { return inWindow(a.StartTimeUTC, from, to) }), nil
}

// -- reminders --

type reminderRepoMem MemoryStore

func (r *reminderRepoMem) Create(_ context.Context, rm *Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.reminder++
	rm.ID = r.seq.reminder
	cp := *rm
	r.reminders[rm.ID] = &cp
	return nil
}

func (r *reminderRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reminders[id]; !ok {
		return ErrNotFound
	}
	delete(r.reminders, id)
	return nil
}

func (r *reminderRepoMem) filter(patientID int64, keep func(*Reminder) bool) []*Reminder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Reminder
	for _, rm := range r.reminders {
		if rm.PatientID == patientID && keep(rm) {
			cp := *rm
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].RemindAtUTC.Equal(items[j].RemindAtUTC) {
			return items[i].RemindAtUTC.Before(items[j].RemindAtUTC)
		}
		return items[i].ID < items[j].ID
	})
	return items
}

func (r *reminderRepoMem) ListByPatient(_ context.Context, patientID int64, limit, offset int) ([]*Reminder, int, error) {
	all := r.filter(patientID, func(*Reminder) bool { return true })
	return page(all, limit, offset), len(all), nil
}

func (r *reminderRepoMem) ListBetween(_ context.Context, patientID int64, from, to time.Time) ([]*Reminder, error) {
	return r.filter(patientID, func(rm *Reminder) bool { return inWindow(rm.RemindAtUTC, from, to) }), nil
}
