package store

import (
	"context"
	"sort"

	"github.com/roach88/qmailtrail/internal/logline"
)

// memoryBackend keeps both tables in maps.
type memoryBackend struct {
	messages   map[logline.ID]MessageRecord
	deliveries map[logline.ID]logline.ID
}

// NewMemory returns a Store backed by Go maps.
func NewMemory() *Store {
	return &Store{b: &memoryBackend{
		messages:   make(map[logline.ID]MessageRecord),
		deliveries: make(map[logline.ID]logline.ID),
	}}
}

func (m *memoryBackend) getMessage(_ context.Context, id logline.ID) (MessageRecord, bool, error) {
	rec, ok := m.messages[id]
	return rec, ok, nil
}

func (m *memoryBackend) putMessage(_ context.Context, rec MessageRecord) error {
	m.messages[rec.ID] = rec
	return nil
}

func (m *memoryBackend) deleteMessage(_ context.Context, id logline.ID) error {
	delete(m.messages, id)
	return nil
}

func (m *memoryBackend) getBinding(_ context.Context, deliveryID logline.ID) (logline.ID, bool, error) {
	id, ok := m.deliveries[deliveryID]
	return id, ok, nil
}

func (m *memoryBackend) putBinding(_ context.Context, b Binding) error {
	m.deliveries[b.DeliveryID] = b.MessageID
	return nil
}

func (m *memoryBackend) deleteBinding(_ context.Context, deliveryID logline.ID) error {
	delete(m.deliveries, deliveryID)
	return nil
}

func (m *memoryBackend) snapshot(_ context.Context) (Snapshot, error) {
	snap := Snapshot{
		Messages:   make([]MessageRecord, 0, len(m.messages)),
		Deliveries: make([]Binding, 0, len(m.deliveries)),
	}
	for _, rec := range m.messages {
		snap.Messages = append(snap.Messages, rec)
	}
	for did, mid := range m.deliveries {
		snap.Deliveries = append(snap.Deliveries, Binding{DeliveryID: did, MessageID: mid})
	}
	sort.Slice(snap.Messages, func(i, j int) bool {
		return snap.Messages[i].ID.Less(snap.Messages[j].ID)
	})
	sort.Slice(snap.Deliveries, func(i, j int) bool {
		return snap.Deliveries[i].DeliveryID.Less(snap.Deliveries[j].DeliveryID)
	})
	return snap, nil
}

func (m *memoryBackend) close() error {
	return nil
}
