package address

import "fmt"

// Manager owns the set of address spaces for one Architecture. It is
// built once at setup time and treated as read-only during a decompile
// run (spec section 5, "Shared resources").
type Manager struct {
	spaces   []*Space
	byName   map[string]*Space
	constant *Space
	unique   *Space
}

// NewManager creates a Manager seeded with the constant and internal
// (unique) spaces every architecture needs; processor spaces are
// added afterwards with AddSpace.
func NewManager() *Manager {
	m := &Manager{byName: make(map[string]*Space)}
	m.constant = m.addSpace(&Space{Name: "const", Shortcut: '#', Kind: Constant, Size: 8, WordSize: 1})
	m.unique = m.addSpace(&Space{Name: "unique", Shortcut: 'u', Kind: Internal, Size: 8, WordSize: 1})
	return m
}

func (m *Manager) addSpace(s *Space) *Space {
	s.Index = len(m.spaces)
	m.spaces = append(m.spaces, s)
	m.byName[s.Name] = s
	return s
}

// AddSpace registers a new processor/spacebase/special space.
func (m *Manager) AddSpace(name string, shortcut byte, wordSize, size int, bigEndian bool, kind Kind) (*Space, error) {
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("address space %q already registered", name)
	}
	return m.addSpace(&Space{Name: name, Shortcut: shortcut, WordSize: wordSize, Size: size, BigEndian: bigEndian, Kind: kind}), nil
}

// AddJoinSpace registers a "join" space describing split storage
// across the given pieces, most-significant piece first.
func (m *Manager) AddJoinSpace(name string, pieces []Address) (*Space, error) {
	if len(pieces) < 2 {
		return nil, fmt.Errorf("join space %q needs at least two pieces", name)
	}
	total := 0
	for _, p := range pieces {
		total += p.Space.Size
	}
	return m.addSpace(&Space{Name: name, Kind: Special, Size: total, WordSize: 1, JoinPieces: pieces}), nil
}

// Space looks up a registered space by name.
func (m *Manager) Space(name string) (*Space, error) {
	s, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown address space %q", name)
	}
	return s, nil
}

// Constant returns the architecture's single constant space.
func (m *Manager) Constant() *Space { return m.constant }

// Unique returns the architecture's single internal/temporary space.
func (m *Manager) Unique() *Space { return m.unique }

// Spaces returns all registered spaces in registration order.
func (m *Manager) Spaces() []*Space { return m.spaces }

// ConstantAddress builds a constant-space Address holding value val.
func (m *Manager) ConstantAddress(val uint64) Address {
	return Address{Space: m.constant, Off: m.constant.Wrap(val)}
}
