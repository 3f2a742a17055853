package directory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrationOrderPreserved(t *testing.T) {
	d := New()

	d.RegisterProvider(Provider{ID: "p2", Name: "Second"})
	d.RegisterProvider(Provider{ID: "p1", Name: "First"})
	d.RegisterDepartment(Department{ID: "radiology", Name: "Radiology"})

	providers := d.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "p2", providers[0].ID)
	assert.Equal(t, "p1", providers[1].ID)

	// Re-registering updates in place without duplicating.
	d.RegisterProvider(Provider{ID: "p2", Name: "Renamed"})
	providers = d.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, "Renamed", providers[0].Name)

	require.Len(t, d.Departments(), 1)
}

func TestLookups(t *testing.T) {
	d := New()
	d.RegisterProvider(Provider{ID: "p1", SlotLabels: []string{"09:00"}})

	p, ok := d.Provider("p1")
	require.True(t, ok)
	assert.Equal(t, "p1", p.ID)

	_, ok = d.Provider("p9")
	assert.False(t, ok)

	_, ok = d.Department("radiology")
	assert.False(t, ok)
}

func TestSlotLabelsReturnsCopy(t *testing.T) {
	d := New()
	d.RegisterProvider(Provider{ID: "p1", SlotLabels: []string{"09:00", "09:30"}})

	labels, ok := d.SlotLabels("p1")
	require.True(t, ok)
	labels[0] = "mutated"

	again, _ := d.SlotLabels("p1")
	assert.Equal(t, "09:00", again[0])

	_, ok = d.SlotLabels("p9")
	assert.False(t, ok)
}

func TestDefaultSlotLabels(t *testing.T) {
	labels := DefaultSlotLabels()
	require.Len(t, labels, 12)
	assert.Equal(t, "09:00", labels[0])
	assert.Equal(t, "16:30", labels[len(labels)-1])
}
