package clusterkit

import (
	"strconv"
	"sync"
)

// itemRecord is the per-entry bookkeeping attached to an internal id.
type itemRecord struct {
	Label    string
	Metadata map[string]string
}

// labelTable is the consolidated bidirectional label ⇄ id mapping plus the
// monotonic id counter. A single mutex spans label registration, id
// assignment, and metadata storage, so no insert can observe a partially
// registered entry and no two inserts can claim the same id or label.
type labelTable struct {
	mu      sync.Mutex
	byLabel map[string]uint64
	byID    map[uint64]itemRecord
	nextID  uint64
}

func newLabelTable(capacityHint int) *labelTable {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &labelTable{
		byLabel: make(map[string]uint64, capacityHint),
		byID:    make(map[uint64]itemRecord, capacityHint),
	}
}

// register assigns the next internal id to label and stores metadata, all in
// one critical section. An empty label is generated from the id counter.
// Returns the assigned id and the effective label.
func (t *labelTable) register(label string, metadata map[string]string) (uint64, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.nextID
	if label == "" {
		label = strconv.FormatUint(id, 10)
	}

	if _, exists := t.byLabel[label]; exists {
		return 0, "", &ErrDuplicateLabel{Label: label}
	}

	t.byLabel[label] = id
	t.byID[id] = itemRecord{Label: label, Metadata: metadata}
	t.nextID++

	return id, label, nil
}

// unregister rolls back a registration whose graph insertion failed. The id
// counter is not rewound; ids are never reused.
func (t *labelTable) unregister(id uint64, label string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byLabel, label)
	delete(t.byID, id)
}

// lookup returns the record for an internal id.
func (t *labelTable) lookup(id uint64) (itemRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.byID[id]
	return rec, ok
}

// id returns the internal id for a label.
func (t *labelTable) id(label string) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, ok := t.byLabel[label]
	return id, ok
}

func (t *labelTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}

// snapshot copies the table state for persistence.
func (t *labelTable) snapshot() (byID map[uint64]itemRecord, byLabel map[string]uint64, nextID uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	byID = make(map[uint64]itemRecord, len(t.byID))
	for id, rec := range t.byID {
		byID[id] = rec
	}
	byLabel = make(map[string]uint64, len(t.byLabel))
	for label, id := range t.byLabel {
		byLabel[label] = id
	}
	return byID, byLabel, t.nextID
}

// restore replaces the table state from a loaded sidecar.
func restoreLabelTable(byID map[uint64]itemRecord, byLabel map[string]uint64, nextID uint64) *labelTable {
	t := newLabelTable(len(byID))
	for id, rec := range byID {
		t.byID[id] = rec
	}
	for label, id := range byLabel {
		t.byLabel[label] = id
	}
	t.nextID = nextID
	return t
}
