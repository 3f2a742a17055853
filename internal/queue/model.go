package queue

import (
	"time"

	"github.com/google/uuid"
)

type EntryStatus string

const (
	StatusWaiting    EntryStatus = "waiting"
	StatusInProgress EntryStatus = "in_progress"
	StatusCompleted  EntryStatus = "completed"
	StatusCancelled  EntryStatus = "cancelled"
)

// Terminal reports whether the status excludes the entry from position
// numbering and from the duplicate-join guard.
func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Entry is one patient's membership record within a department queue.
// The token number is assigned at join time and stays stable for the
// lifetime of the entry; the position reported to clients is recomputed
// on every snapshot.
type Entry struct {
	VisitID      uuid.UUID   `json:"visit_id"`
	DepartmentID string      `json:"department_id"`
	Date         string      `json:"date"`
	PatientID    string      `json:"patient_id"`
	PatientName  string      `json:"patient_name"`
	TokenNumber  int         `json:"token_number"`
	Status       EntryStatus `json:"status"`
	JoinedAt     time.Time   `json:"joined_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Position is one row of the live queue view.
type Position struct {
	Position          int       `json:"position"`
	TokenNumber       int       `json:"token_number"`
	VisitID           uuid.UUID `json:"visit_id"`
	PatientID         string    `json:"patient_id"`
	PatientName       string    `json:"patient_name"`
	EstimatedWaitMins int       `json:"estimated_wait_minutes"`
	JoinedAt          time.Time `json:"joined_at"`
}

// View is the full queue state of one department on one date. Positions are
// contiguous 1..N over waiting entries only. History carries terminal and
// in-progress entries when requested.
type View struct {
	DepartmentID      string     `json:"department_id"`
	Date              string     `json:"date"`
	TotalWaiting      int        `json:"total_waiting"`
	EstimatedWaitMins int        `json:"estimated_total_wait_minutes"`
	Queue             []Position `json:"queue"`
	History           []Entry    `json:"history,omitempty"`
}
