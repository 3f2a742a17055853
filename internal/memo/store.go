package memo

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrMemoNotFound        = errors.New("visit memo not found")
	ErrDepartmentNotOnMemo = errors.New("department not listed on memo")
)

// DepartmentVisit is one intended department visit on a memo. The visit ID
// is attached once the patient joins that department's queue; IsVisited
// flips when the visit completes.
type DepartmentVisit struct {
	DepartmentID string     `json:"department_id"`
	VisitID      *uuid.UUID `json:"visit_id,omitempty"`
	IsVisited    bool       `json:"is_visited"`
}

// Memo is the patient-held aggregate of departments they intend to visit
// during one care episode. Memos are never auto-deleted.
type Memo struct {
	ID          uuid.UUID         `json:"id"`
	PatientID   string            `json:"patient_id"`
	PatientName string            `json:"patient_name"`
	Departments []DepartmentVisit `json:"departments"`
	IsRead      bool              `json:"is_read"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Store holds visit memos with a secondary index by patient. Memo updates
// are metadata only and carry none of the ledger conflict guarantees.
type Store struct {
	mu        sync.RWMutex
	memos     map[uuid.UUID]*Memo
	byPatient map[string][]uuid.UUID
	byVisit   map[uuid.UUID]uuid.UUID
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		memos:     make(map[uuid.UUID]*Memo),
		byPatient: make(map[string][]uuid.UUID),
		byVisit:   make(map[uuid.UUID]uuid.UUID),
		now:       time.Now,
	}
}

// Create registers a memo listing the departments the patient intends to visit.
func (s *Store) Create(patientID, patientName string, departmentIDs []string) Memo {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := &Memo{
		ID:          uuid.New(),
		PatientID:   patientID,
		PatientName: patientName,
		Departments: make([]DepartmentVisit, 0, len(departmentIDs)),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, id := range departmentIDs {
		m.Departments = append(m.Departments, DepartmentVisit{DepartmentID: id})
	}

	s.memos[m.ID] = m
	s.byPatient[patientID] = append(s.byPatient[patientID], m.ID)
	return m.clone()
}

// clone returns a copy that does not share the departments slice, so callers
// can hold snapshots while the store keeps mutating.
func (m *Memo) clone() Memo {
	out := *m
	out.Departments = make([]DepartmentVisit, len(m.Departments))
	copy(out.Departments, m.Departments)
	return out
}

// AttachQueueEntry links a queue entry to the memo's department line.
func (s *Store) AttachQueueEntry(memoID uuid.UUID, departmentID string, visitID uuid.UUID) (Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memos[memoID]
	if !ok {
		return Memo{}, ErrMemoNotFound
	}

	for i := range m.Departments {
		if m.Departments[i].DepartmentID == departmentID {
			vid := visitID
			m.Departments[i].VisitID = &vid
			m.UpdatedAt = s.now()
			s.byVisit[visitID] = m.ID
			return m.clone(), nil
		}
	}
	return Memo{}, ErrDepartmentNotOnMemo
}

// MarkVisitedByVisit flips the IsVisited flag of the department line holding
// the given visit ID. Returns the updated memo and whether one was found.
func (s *Store) MarkVisitedByVisit(visitID uuid.UUID) (Memo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	memoID, ok := s.byVisit[visitID]
	if !ok {
		return Memo{}, false
	}
	m := s.memos[memoID]
	for i := range m.Departments {
		if m.Departments[i].VisitID != nil && *m.Departments[i].VisitID == visitID {
			m.Departments[i].IsVisited = true
			m.UpdatedAt = s.now()
			return m.clone(), true
		}
	}
	return Memo{}, false
}

// MarkRead marks the memo notification as read.
func (s *Store) MarkRead(memoID uuid.UUID) (Memo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.memos[memoID]
	if !ok {
		return Memo{}, ErrMemoNotFound
	}
	m.IsRead = true
	m.UpdatedAt = s.now()
	return m.clone(), nil
}

// Get returns a copy of the memo.
func (s *Store) Get(memoID uuid.UUID) (Memo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.memos[memoID]
	if !ok {
		return Memo{}, ErrMemoNotFound
	}
	return m.clone(), nil
}

// ListByPatient returns the patient's memos in creation order.
func (s *Store) ListByPatient(patientID string) []Memo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byPatient[patientID]
	out := make([]Memo, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.memos[id].clone())
	}
	return out
}
