package sim

import (
	"fmt"
	"sync"
)

// Journal is an ordered record of collaborator calls shared by several
// simulated components. A nil *Journal discards records.
type Journal struct {
	mutex   sync.Mutex
	entries []string
}

// Record appends a formatted entry.
func (j *Journal) Record(format string, args ...any) {
	if j == nil {
		return
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

// Entries returns a copy of the recorded entries.
func (j *Journal) Entries() []string {
	if j == nil {
		return nil
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	return append([]string(nil), j.entries...)
}

// Reset discards all entries.
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	j.mutex.Lock()
	defer j.mutex.Unlock()
	j.entries = nil
}
