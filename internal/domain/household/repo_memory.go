package household

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carecircle/carecircle/internal/platform/db"
	"github.com/carecircle/carecircle/pkg/pagination"
)

// MemoryStore keeps families, patients and contacts in process memory with
// the same referential rules as the SQL schema: references are checked on
// write and deletes cascade from family to patients and contacts, and from
// patient to contacts.
type MemoryStore struct {
	mu       sync.RWMutex
	families map[int64]*Family
	patients map[int64]*Patient
	contacts map[int64]*Contact
	seq      struct{ family, patient, contact int64 }
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		families: make(map[int64]*Family),
		patients: make(map[int64]*Patient),
		contacts: make(map[int64]*Contact),
	}
}

func (s *MemoryStore) Families() FamilyRepository { return (*familyRepoMem)(s) }
func (s *MemoryStore) Patients() PatientRepository { return (*patientRepoMem)(s) }
func (s *MemoryStore) Contacts() ContactRepository { return (*contactRepoMem)(s) }

func page[T any](items []*T, limit, offset int) []*T {
	start, end := pagination.Bounds(len(items), limit, offset)
	return items[start:end]
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// dropContacts removes every contact match selects. Caller holds the write lock.
func (s *MemoryStore) dropContacts(match func(*Contact) bool) {
	for id, c := range s.contacts {
		if match(c) {
			delete(s.contacts, id)
		}
	}
}

// -- families --

type familyRepoMem MemoryStore

func (r *familyRepoMem) Create(_ context.Context, f *Family) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq.family++
	f.ID = r.seq.family
	cp := *f
	r.families[f.ID] = &cp
	return nil
}

func (r *familyRepoMem) GetByID(_ context.Context, id int64) (*Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *familyRepoMem) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.families[id]
	return ok, nil
}

func (r *familyRepoMem) Update(_ context.Context, id int64, p FamilyPatch, now time.Time) (*Family, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.families[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name.Set {
		f.Name = p.Name.Value
	}
	p.Notes.Apply(&f.Notes)
	f.UpdatedAt = db.NextAfter(f.UpdatedAt, now)
	cp := *f
	return &cp, nil
}

func (r *familyRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[id]; !ok {
		return ErrNotFound
	}
	delete(r.families, id)
	for pid, p := range r.patients {
		if p.FamilyID == id {
			delete(r.patients, pid)
		}
	}
	(*MemoryStore)(r).dropContacts(func(c *Contact) bool { return c.FamilyID == id })
	return nil
}

func (r *familyRepoMem) List(_ context.Context, filter FamilyFilter, limit, offset int) ([]*Family, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Family
	for _, f := range r.families {
		if filter.Search == "" || containsFold(f.Name, filter.Search) {
			cp := *f
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return page(items, limit, offset), len(items), nil
}

// -- patients --

type patientRepoMem MemoryStore

func (r *patientRepoMem) Create(_ context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[p.FamilyID]; !ok {
		return badReference("family_id")
	}
	r.seq.patient++
	p.ID = r.seq.patient
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepoMem) GetByID(_ context.Context, id int64) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepoMem) GetWithFamily(_ context.Context, id int64) (*PatientWithFamily, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	f, ok := r.families[p.FamilyID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &PatientWithFamily{Patient: &cp, FamilyName: f.Name}, nil
}

func (r *patientRepoMem) Exists(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.patients[id]
	return ok, nil
}

func (r *patientRepoMem) Update(_ context.Context, id int64, p PatientPatch, now time.Time) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.FamilyID.Set {
		if _, ok := r.families[p.FamilyID.Value]; !ok {
			return nil, badReference("family_id")
		}
		cur.FamilyID = p.FamilyID.Value
	}
	if p.FirstName.Set {
		cur.FirstName = p.FirstName.Value
	}
	if p.LastName.Set {
		cur.LastName = p.LastName.Value
	}
	p.DateOfBirth.Apply(&cur.DateOfBirth)
	p.Notes.Apply(&cur.Notes)
	cur.UpdatedAt = db.NextAfter(cur.UpdatedAt, now)
	cp := *cur
	return &cp, nil
}

func (r *patientRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return ErrNotFound
	}
	delete(r.patients, id)
	(*MemoryStore)(r).dropContacts(func(c *Contact) bool { return c.PatientID != nil && *c.PatientID == id })
	return nil
}

func (r *patientRepoMem) collect(keep func(*Patient) bool) []*Patient {
	var items []*Patient
	for _, p := range r.patients {
		if keep(p) {
			cp := *p
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *patientRepoMem) List(_ context.Context, filter PatientFilter, limit, offset int) ([]*Patient, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.collect(func(p *Patient) bool {
		if filter.Search != "" && !containsFold(p.FirstName, filter.Search) && !containsFold(p.LastName, filter.Search) {
			return false
		}
		if filter.LastName != "" && !containsFold(p.LastName, filter.LastName) {
			return false
		}
		return filter.FamilyID == nil || p.FamilyID == *filter.FamilyID
	})
	return page(items, limit, offset), len(items), nil
}

func (r *patientRepoMem) ListByFamily(_ context.Context, familyID int64) ([]*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(p *Patient) bool { return p.FamilyID == familyID }), nil
}

// -- contacts --

type contactRepoMem MemoryStore

func (r *contactRepoMem) Create(_ context.Context, c *Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[c.FamilyID]; !ok {
		return badReference("family_id")
	}
	if c.PatientID != nil {
		if _, ok := r.patients[*c.PatientID]; !ok {
			return badReference("patient_id")
		}
	}
	r.seq.contact++
	c.ID = r.seq.contact
	cp := *c
	r.contacts[c.ID] = &cp
	return nil
}

func (r *contactRepoMem) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(r.contacts, id)
	return nil
}

func (r *contactRepoMem) collect(keep func(*Contact) bool) []*Contact {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*Contact
	for _, c := range r.contacts {
		if keep(c) {
			cp := *c
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

func (r *contactRepoMem) List(_ context.Context, filter ContactFilter, limit, offset int) ([]*Contact, int, error) {
	items := r.collect(func(c *Contact) bool {
		if filter.FamilyID != nil && c.FamilyID != *filter.FamilyID {
			return false
		}
		return filter.PatientID == nil || (c.PatientID != nil && *c.PatientID == *filter.PatientID)
	})
	return page(items, limit, offset), len(items), nil
}

func (r *contactRepoMem) ListByFamily(_ context.Context, familyID int64) ([]*Contact, error) {
	return r.collect(func(c *Contact) bool { return c.FamilyID == familyID }), nil
}

func (r *contactRepoMem) ListByPatient(_ context.Context, patientID int64) ([]*Contact, error) {
	return r.collect(func(c *Contact) bool { return c.PatientID != nil && *c.PatientID == patientID }), nil
}
