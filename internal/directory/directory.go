package directory

import "sync"

// Provider is shared reference data: the slot labels define the bookable
// grid for every calendar date of that provider.
type Provider struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Specialty  string   `json:"specialty"`
	SlotLabels []string `json:"slot_labels"`
}

// Department is a clinical unit patients queue for.
type Department struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Directory holds the provider and department reference tables. Entries are
// registered at startup (from the database or fixtures) and read-only after
// that from the engine's point of view.
type Directory struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	providerIDs []string
	departments map[string]Department
	deptIDs     []string
}

func New() *Directory {
	return &Directory{
		providers:   make(map[string]Provider),
		departments: make(map[string]Department),
	}
}

func (d *Directory) RegisterProvider(p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.providers[p.ID]; !ok {
		d.providerIDs = append(d.providerIDs, p.ID)
	}
	d.providers[p.ID] = p
}

func (d *Directory) RegisterDepartment(dep Department) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.departments[dep.ID]; !ok {
		d.deptIDs = append(d.deptIDs, dep.ID)
	}
	d.departments[dep.ID] = dep
}

func (d *Directory) Provider(id string) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.providers[id]
	return p, ok
}

func (d *Directory) Department(id string) (Department, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	dep, ok := d.departments[id]
	return dep, ok
}

// SlotLabels implements the slot ledger's label source.
func (d *Directory) SlotLabels(providerID string) ([]string, bool) {
	p, ok := d.Provider(providerID)
	if !ok {
		return nil, false
	}
	labels := make([]string, len(p.SlotLabels))
	copy(labels, p.SlotLabels)
	return labels, true
}

// Providers returns providers in registration order.
func (d *Directory) Providers() []Provider {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Provider, 0, len(d.providerIDs))
	for _, id := range d.providerIDs {
		out = append(out, d.providers[id])
	}
	return out
}

// Departments returns departments in registration order.
func (d *Directory) Departments() []Department {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Department, 0, len(d.deptIDs))
	for _, id := range d.deptIDs {
		out = append(out, d.departments[id])
	}
	return out
}

// DefaultSlotLabels is the standard morning/afternoon grid used when a
// provider record carries no labels of its own.
func DefaultSlotLabels() []string {
	return []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"14:00", "14:30", "15:00", "15:30", "16:00", "16:30",
	}
}
