package memo

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMemo(t *testing.T) {
	s := NewStore()

	m := s.Create("pat-1", "Asha Rao", []string{"radiology", "pathology"})

	assert.NotEqual(t, uuid.Nil, m.ID)
	assert.False(t, m.IsRead)
	require.Len(t, m.Departments, 2)
	for _, d := range m.Departments {
		assert.Nil(t, d.VisitID)
		assert.False(t, d.IsVisited)
	}

	got, err := s.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestAttachQueueEntry(t *testing.T) {
	s := NewStore()
	m := s.Create("pat-1", "Asha Rao", []string{"radiology", "pathology"})
	visitID := uuid.New()

	updated, err := s.AttachQueueEntry(m.ID, "radiology", visitID)
	require.NoError(t, err)
	require.NotNil(t, updated.Departments[0].VisitID)
	assert.Equal(t, visitID, *updated.Departments[0].VisitID)
	assert.False(t, updated.Departments[0].IsVisited)
	assert.Nil(t, updated.Departments[1].VisitID)

	_, err = s.AttachQueueEntry(m.ID, "dental", uuid.New())
	require.ErrorIs(t, err, ErrDepartmentNotOnMemo)

	_, err = s.AttachQueueEntry(uuid.New(), "radiology", uuid.New())
	require.ErrorIs(t, err, ErrMemoNotFound)
}

func TestMarkVisitedByVisit(t *testing.T) {
	s := NewStore()
	m := s.Create("pat-1", "Asha Rao", []string{"radiology", "pathology"})
	visitID := uuid.New()

	_, err := s.AttachQueueEntry(m.ID, "radiology", visitID)
	require.NoError(t, err)

	updated, ok := s.MarkVisitedByVisit(visitID)
	require.True(t, ok)
	assert.True(t, updated.Departments[0].IsVisited)
	assert.False(t, updated.Departments[1].IsVisited)

	// Unknown visit IDs are a no-op.
	_, ok = s.MarkVisitedByVisit(uuid.New())
	assert.False(t, ok)
}

func TestMarkRead(t *testing.T) {
	s := NewStore()
	m := s.Create("pat-1", "Asha Rao", []string{"radiology"})

	updated, err := s.MarkRead(m.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRead)

	_, err = s.MarkRead(uuid.New())
	require.ErrorIs(t, err, ErrMemoNotFound)
}

func TestListByPatientCreationOrder(t *testing.T) {
	s := NewStore()

	m1 := s.Create("pat-1", "Asha Rao", []string{"radiology"})
	m2 := s.Create("pat-1", "Asha Rao", []string{"pathology"})
	s.Create("pat-2", "Vik Mehta", []string{"dental"})

	memos := s.ListByPatient("pat-1")
	require.Len(t, memos, 2)
	assert.Equal(t, m1.ID, memos[0].ID)
	assert.Equal(t, m2.ID, memos[1].ID)

	assert.Empty(t, s.ListByPatient("pat-3"))
}

func TestReturnedMemosAreCopies(t *testing.T) {
	s := NewStore()
	m := s.Create("pat-1", "Asha Rao", []string{"radiology"})

	m.PatientName = "mutated"
	m.IsRead = true

	stored, err := s.Get(m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", stored.PatientName)
	assert.False(t, stored.IsRead)
}
