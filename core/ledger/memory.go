package ledger

import (
	"slices"
	"sync"
	"time"
)

// Memory is an in-process Ledger. It is not durable and exists for tests
// and dry runs. Entries round-trip through the persisted encoding so the
// behaviour matches the disk ledger.
type Memory struct {
	mu      sync.Mutex
	entries map[Key][]byte
	states  map[string][]byte
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[Key][]byte),
		states:  make(map[string][]byte),
	}
}

func (m *Memory) Record(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.Key]; ok {
		return ErrDuplicate
	}
	m.entries[e.Key] = MarshalEntry(&e)
	return nil
}

func (m *Memory) Lookup(k Key) (Entry, error) {
	m.mu.Lock()
	raw, ok := m.entries[k]
	m.mu.Unlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return UnmarshalEntry(raw)
}

func (m *Memory) Remove(k Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
	return nil
}

func (m *Memory) AllForArchive(archive string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for k, raw := range m.entries {
		if k.Archive != archive {
			continue
		}
		e, err := UnmarshalEntry(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	SortEntries(out)
	return out, nil
}

func (m *Memory) Archives() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.entries {
		if !slices.Contains(out, k.Archive) {
			out = append(out, k.Archive)
		}
	}
	for a := range m.states {
		if !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	slices.Sort(out)
	return out, nil
}

func (m *Memory) MarkInconsistent(archive, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[archive] = MarshalState(&ArchiveState{Archive: archive, Reason: reason, MarkedAt: time.Now().UTC()})
	return nil
}

func (m *Memory) Inconsistent(archive string) (ArchiveState, bool, error) {
	m.mu.Lock()
	raw, ok := m.states[archive]
	m.mu.Unlock()
	if !ok {
		return ArchiveState{}, false, nil
	}
	s, err := UnmarshalState(raw)
	if err != nil {
		return ArchiveState{}, false, err
	}
	return s, true, nil
}

func (m *Memory) ClearInconsistent(archive string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, archive)
	return nil
}
