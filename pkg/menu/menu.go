package menu

import (
	"log"

	"github.com/itohio/filscale/pkg/button"
)

// State is the menu state.
type State int

const (
	Idle State = iota
	List
	Diagnostics
	ZeroPrompt
)

func (s State) String() string {
	switch s {
	case List:
		return "list"
	case Diagnostics:
		return "diag"
	case ZeroPrompt:
		return "zero"
	default:
		return "idle"
	}
}

// ItemKind identifies what a list entry does when committed.
type ItemKind int

const (
	ItemZero ItemKind = iota
	ItemPreset
	ItemDiagnostics
)

// Item is one entry of the list.
type Item struct {
	Kind   ItemKind
	Label  string
	Preset int // preset index for ItemPreset
}

// ActionKind is a side effect requested by the menu.
type ActionKind int

const (
	NoAction ActionKind = iota
	Zero
	SelectPreset
)

// Action is returned by Handle for the caller to apply.
type Action struct {
	Kind   ActionKind
	Preset int
}

// Machine is the button driven menu. It never performs side effects itself.
type Machine struct {
	state  State
	items  []Item
	cursor int
}

// New creates a menu listing Zero, one entry per preset name, and Diagnostics.
func New(presets []string) *Machine {
	items := make([]Item, 0, len(presets)+2)
	items = append(items, Item{Kind: ItemZero, Label: "Zero"})
	for i, name := range presets {
		items = append(items, Item{Kind: ItemPreset, Label: name, Preset: i})
	}
	items = append(items, Item{Kind: ItemDiagnostics, Label: "Diagnostics"})
	return &Machine{items: items}
}

// Handle applies a button event and returns the resulting action.
func (m *Machine) Handle(ev button.Event) Action {
	if ev == button.None {
		return Action{}
	}

	switch m.state {
	case Idle:
		if ev == button.Short {
			m.cursor = 0
			m.enter(List)
		}

	case List:
		if ev == button.Short {
			m.cursor = (m.cursor + 1) % len(m.items)
			return Action{}
		}
		return m.commit()

	case Diagnostics:
		m.enter(Idle)

	case ZeroPrompt:
		// The scale must be empty; a long press confirms, a short one cancels.
		m.enter(Idle)
		if ev == button.Long {
			return Action{Kind: Zero}
		}
	}
	return Action{}
}

func (m *Machine) commit() Action {
	item := m.items[m.cursor]
	switch item.Kind {
	case ItemZero:
		m.enter(ZeroPrompt)
	case ItemPreset:
		m.enter(Idle)
		return Action{Kind: SelectPreset, Preset: item.Preset}
	case ItemDiagnostics:
		m.enter(Diagnostics)
	}
	return Action{}
}

func (m *Machine) enter(s State) {
	if m.state != s {
		log.Printf("menu: %s -> %s", m.state, s)
	}
	m.state = s
}

// Reset returns the menu to Idle.
func (m *Machine) Reset() {
	m.enter(Idle)
	m.cursor = 0
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Cursor returns the index of the highlighted item.
func (m *Machine) Cursor() int { return m.cursor }

// Highlighted returns the highlighted item.
func (m *Machine) Highlighted() Item { return m.items[m.cursor] }

// Items returns the list entries.
func (m *Machine) Items() []Item { return m.items }

// Labels returns the list entry labels.
func (m *Machine) Labels() []string {
	labels := make([]string, len(m.items))
	for i, it := range m.items {
		labels[i] = it.Label
	}
	return labels
}
