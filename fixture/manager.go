package fixture

import (
	"fmt"
	"sync"

	"github.com/robmorgan/pulse/config"
)

// Manager is the fixture manager interface
type Manager interface {
	GetFixtureNames() []string
	GetByName(name string) *Fixture
	GetByRole(role string) []*Fixture
	GetDMXState() *DMXState
	SetDMXState(ops ...dmxOperation) error
}

// NameMap holds string-keyed fixtures
type NameMap map[string]*Fixture

// StateManager holds the patched fixtures and the DMX state they render into
type StateManager struct {
	items    NameMap
	order    []string
	lock     sync.RWMutex
	dmxState DMXState
}

// NewManager builds the fixtures from the patch in config
func NewManager(cfg config.HaloConfig) (Manager, error) {
	m := StateManager{
		items:    make(NameMap),
		dmxState: DMXState{universes: make(map[int][]byte)},
	}

	for i := range cfg.PatchedFixtures {
		x := &cfg.PatchedFixtures[i]

		if _, ok := m.items[x.Name]; ok {
			return nil, fmt.Errorf("duplicate fixtures found! name=%s", x.Name)
		}
		p, ok := cfg.FixtureProfiles[x.Profile]
		if !ok {
			return nil, fmt.Errorf("fixture %s uses unknown profile %q", x.Name, x.Profile)
		}

		m.items[x.Name] = &Fixture{
			Name:     x.Name,
			Universe: x.Universe,
			Address:  x.Address,
			Role:     x.Role,
			Profile:  p,
		}
		m.order = append(m.order, x.Name)
	}

	return &m, nil
}

// GetFixtureNames returns all the fixture names in patch order
func (m *StateManager) GetFixtureNames() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return append([]string(nil), m.order...)
}

// GetByName looks up a fixture by name
func (m *StateManager) GetByName(name string) *Fixture {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.items[name]
}

// GetByRole returns the fixtures patched for a role, in patch order
func (m *StateManager) GetByRole(role string) []*Fixture {
	m.lock.RLock()
	defer m.lock.RUnlock()

	out := []*Fixture{}
	for _, name := range m.order {
		if f := m.items[name]; f.Role == role {
			out = append(out, f)
		}
	}
	return out
}

// GetDMXState returns the current dmx state
func (m *StateManager) GetDMXState() *DMXState {
	return &m.dmxState
}

// SetDMXState updates the dmxstate
func (m *StateManager) SetDMXState(ops ...dmxOperation) error {
	return m.dmxState.set(ops...)
}
