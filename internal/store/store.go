package store

import (
	"context"
	"fmt"

	"github.com/roach88/qmailtrail/internal/logline"
)

// backend is the row access each storage engine provides.
// The integrity rules live in Store and are shared by every backend.
type backend interface {
	getMessage(ctx context.Context, id logline.ID) (MessageRecord, bool, error)
	putMessage(ctx context.Context, rec MessageRecord) error
	deleteMessage(ctx context.Context, id logline.ID) error

	getBinding(ctx context.Context, deliveryID logline.ID) (logline.ID, bool, error)
	putBinding(ctx context.Context, b Binding) error
	deleteBinding(ctx context.Context, deliveryID logline.ID) error

	snapshot(ctx context.Context) (Snapshot, error)
	close() error
}

// Store is the correlation state: live messages and in-flight deliveries.
type Store struct {
	b backend
}

// Close releases the backend.
func (s *Store) Close() error {
	if s == nil || s.b == nil {
		return nil
	}
	return s.b.close()
}

// CreateMessage starts tracking id with an empty record.
//
// If id is already live the record is reset to empty and an
// *IntegrityError carrying the discarded record is returned.
func (s *Store) CreateMessage(ctx context.Context, id logline.ID) error {
	prior, exists, err := s.b.getMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("create message %s: %w", id, err)
	}
	if err := s.b.putMessage(ctx, MessageRecord{ID: id}); err != nil {
		return fmt.Errorf("create message %s: %w", id, err)
	}
	if exists {
		return integrity(CodeDuplicateMessage, id, &prior,
			"message id %s already exists; log is inconsistent", id)
	}
	return nil
}

// UpdateMessage stores the info fields of id.
//
// Only an empty record is filled. A record that already holds data is left
// untouched and CodeInfoOnPopulated is returned. An unknown id is inserted
// anyway and CodeInfoOnUnseen is returned.
func (s *Store) UpdateMessage(ctx context.Context, id logline.ID, info Info) error {
	rec, exists, err := s.b.getMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("update message %s: %w", id, err)
	}

	if exists && !rec.IsEmpty() {
		prior := rec
		return integrity(CodeInfoOnPopulated, id, &prior,
			"message id %s already has data; log is inconsistent", id)
	}

	rec = MessageRecord{ID: id}
	rec.applyInfo(info)
	if err := s.b.putMessage(ctx, rec); err != nil {
		return fmt.Errorf("update message %s: %w", id, err)
	}

	if !exists {
		return integrity(CodeInfoOnUnseen, id, nil,
			"message id %s was never created; log is inconsistent", id)
	}
	return nil
}

// EnsureMessage merges delivery start fields into id, first synthesizing a
// placeholder record (size "?", sender "(Unknown)") if id is not live.
// Reports whether a placeholder was created.
func (s *Store) EnsureMessage(ctx context.Context, id logline.ID, d Delivery) (bool, error) {
	rec, exists, err := s.b.getMessage(ctx, id)
	if err != nil {
		return false, fmt.Errorf("ensure message %s: %w", id, err)
	}
	if !exists {
		rec = placeholder(id)
	}
	rec.applyDelivery(d)
	if err := s.b.putMessage(ctx, rec); err != nil {
		return false, fmt.Errorf("ensure message %s: %w", id, err)
	}
	return !exists, nil
}

// MergeResult records a delivery result on id and returns the merged record.
// Returns false without writing anything if id is not live.
func (s *Store) MergeResult(ctx context.Context, id logline.ID, res Result) (MessageRecord, bool, error) {
	rec, exists, err := s.b.getMessage(ctx, id)
	if err != nil {
		return MessageRecord{}, false, fmt.Errorf("merge result %s: %w", id, err)
	}
	if !exists {
		return MessageRecord{}, false, nil
	}
	rec.applyResult(res)
	if err := s.b.putMessage(ctx, rec); err != nil {
		return MessageRecord{}, false, fmt.Errorf("merge result %s: %w", id, err)
	}
	return rec, true, nil
}

// GetMessage returns the live record for id.
func (s *Store) GetMessage(ctx context.Context, id logline.ID) (MessageRecord, bool, error) {
	rec, ok, err := s.b.getMessage(ctx, id)
	if err != nil {
		return MessageRecord{}, false, fmt.Errorf("get message %s: %w", id, err)
	}
	return rec, ok, nil
}

// RemoveMessage stops tracking id. Removing an id that is not live is a
// no-op reported as CodeRemoveAbsent.
func (s *Store) RemoveMessage(ctx context.Context, id logline.ID) error {
	_, exists, err := s.b.getMessage(ctx, id)
	if err != nil {
		return fmt.Errorf("remove message %s: %w", id, err)
	}
	if !exists {
		return integrity(CodeRemoveAbsent, id, nil,
			"message id %s had already been removed; log is inconsistent", id)
	}
	if err := s.b.deleteMessage(ctx, id); err != nil {
		return fmt.Errorf("remove message %s: %w", id, err)
	}
	return nil
}

// BindDelivery associates deliveryID with messageID until the delivery resolves.
//
// A delivery id that is still bound is rebound to messageID and
// CodeDeliveryRebound is returned with MessageID set to the old owner.
func (s *Store) BindDelivery(ctx context.Context, deliveryID, messageID logline.ID) error {
	old, bound, err := s.b.getBinding(ctx, deliveryID)
	if err != nil {
		return fmt.Errorf("bind delivery %s: %w", deliveryID, err)
	}
	if err := s.b.putBinding(ctx, Binding{DeliveryID: deliveryID, MessageID: messageID}); err != nil {
		return fmt.Errorf("bind delivery %s: %w", deliveryID, err)
	}
	if bound {
		ie := integrity(CodeDeliveryRebound, old, nil,
			"delivery id %s started again before its result (now msg %s)", deliveryID, messageID)
		ie.DeliveryID = deliveryID
		return ie
	}
	return nil
}

// ResolveDelivery returns the message bound to deliveryID.
func (s *Store) ResolveDelivery(ctx context.Context, deliveryID logline.ID) (logline.ID, bool, error) {
	id, ok, err := s.b.getBinding(ctx, deliveryID)
	if err != nil {
		return "", false, fmt.Errorf("resolve delivery %s: %w", deliveryID, err)
	}
	return id, ok, nil
}

// ReleaseDelivery drops the binding for deliveryID. Releasing an unbound id is a no-op.
func (s *Store) ReleaseDelivery(ctx context.Context, deliveryID logline.ID) error {
	if err := s.b.deleteBinding(ctx, deliveryID); err != nil {
		return fmt.Errorf("release delivery %s: %w", deliveryID, err)
	}
	return nil
}

// Pending returns every live message and in-flight delivery.
func (s *Store) Pending(ctx context.Context) (Snapshot, error) {
	snap, err := s.b.snapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("pending: %w", err)
	}
	return snap, nil
}
