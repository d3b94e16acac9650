// Package session holds the state behind the front end screens: the selected
// tab, the helper (refinement) screen, the translator screen and the API key
// dialog. Holders are safe for concurrent use; a request started from the UI
// goroutine may finish on another one.
package session

import (
	"sync"
)

// Tab identifies a screen.
type Tab int

const (
	TabHelper Tab = iota
	TabTranslator
)

func (t Tab) String() string {
	switch t {
	case TabHelper:
		return "Helper"
	case TabTranslator:
		return "Mouth translator"
	default:
		return "Unknown"
	}
}

// Main tracks the selected tab.
type Main struct {
	mu       sync.RWMutex
	selected Tab
}

func (m *Main) SelectedTab() Tab {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.selected
}

func (m *Main) SelectTab(tab Tab) {
	m.mu.Lock()
	m.selected = tab
	m.mu.Unlock()
}

func errorText(err error) string {
	return "Error: " + err.Error()
}
