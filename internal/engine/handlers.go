package engine

import (
	"context"
	"fmt"

	"github.com/roach88/qmailtrail/internal/logline"
	"github.com/roach88/qmailtrail/internal/store"
)

// dispatch routes an event to its handler.
func (e *Engine) dispatch(ctx context.Context, ev logline.Event) error {
	switch ev := ev.(type) {
	case logline.NewMessage:
		return e.handleNewMessage(ctx, ev)
	case logline.MessageInfo:
		return e.handleMessageInfo(ctx, ev)
	case logline.DeliveryStart:
		return e.handleDeliveryStart(ctx, ev)
	case logline.DeliveryResult:
		return e.handleDeliveryResult(ctx, ev)
	case logline.EndMessage:
		return e.handleEndMessage(ctx, ev)
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
}

// handleNewMessage: unseen -> created(empty). A live id is reset.
func (e *Engine) handleNewMessage(ctx context.Context, ev logline.NewMessage) error {
	return e.check(e.store.CreateMessage(ctx, ev.MessageID))
}

// handleMessageInfo: created(empty) -> populated.
func (e *Engine) handleMessageInfo(ctx context.Context, ev logline.MessageInfo) error {
	return e.check(e.store.UpdateMessage(ctx, ev.MessageID, store.Info{
		Size:   ev.Size,
		Sender: ev.Sender,
	}))
}

// handleDeliveryStart merges direction and recipient into the message,
// creating a placeholder if needed, and binds the delivery id to it.
func (e *Engine) handleDeliveryStart(ctx context.Context, ev logline.DeliveryStart) error {
	created, err := e.store.EnsureMessage(ctx, ev.MessageID, store.Delivery{
		Direction: ev.Direction,
		Recipient: ev.Recipient,
	})
	if err != nil {
		return err
	}
	if created {
		e.logger.Debug("placeholder message created",
			"msg_id", ev.MessageID.String(),
			"delivery_id", ev.DeliveryID.String(),
		)
	}

	return e.check(e.store.BindDelivery(ctx, ev.DeliveryID, ev.MessageID))
}

// handleDeliveryResult resolves a bound delivery, emits its line and
// releases the binding. Results for unbound delivery ids are dropped.
func (e *Engine) handleDeliveryResult(ctx context.Context, ev logline.DeliveryResult) error {
	messageID, bound, err := e.store.ResolveDelivery(ctx, ev.DeliveryID)
	if err != nil {
		return err
	}
	if !bound {
		e.stats.Dropped++
		e.logger.Debug("result for unbound delivery dropped",
			"delivery_id", ev.DeliveryID.String(),
			"line_no", e.lineNo,
		)
		return nil
	}

	res := store.Result{Status: ev.Status, Detail: ev.Detail, Time: ev.Time}
	rec, found, err := e.store.MergeResult(ctx, messageID, res)
	if err != nil {
		return err
	}

	switch {
	case !found:
		e.warn(Warning{
			Code:       WarnOrphanDelivery,
			Message:    fmt.Sprintf("delivery %s resolved after message %s was removed; log is inconsistent", ev.DeliveryID, messageID),
			MessageID:  messageID,
			DeliveryID: ev.DeliveryID,
		})
		rec = orphanRecord(messageID, res)
	case rec.Direction == logline.DirectionUnknown:
		prior := rec
		e.warn(Warning{
			Code:       WarnResultWithoutStart,
			Message:    fmt.Sprintf("delivery %s resolved for message %s which has no delivery start; log is inconsistent", ev.DeliveryID, messageID),
			MessageID:  messageID,
			DeliveryID: ev.DeliveryID,
			Prior:      &prior,
		})
	}

	if err := e.emit(rec); err != nil {
		return err
	}
	return e.store.ReleaseDelivery(ctx, ev.DeliveryID)
}

// handleEndMessage: any -> removed.
func (e *Engine) handleEndMessage(ctx context.Context, ev logline.EndMessage) error {
	return e.check(e.store.RemoveMessage(ctx, ev.MessageID))
}

// orphanRecord stands in for a message that is no longer tracked.
func orphanRecord(id logline.ID, res store.Result) store.MessageRecord {
	return store.MessageRecord{
		ID:             id,
		Size:           store.UnknownSize,
		Sender:         store.UnknownSender,
		DeliveryStatus: res.Status,
		DeliveryDetail: res.Detail,
		CompletionTime: res.Time,
		Fields:         store.FieldPlaceholder | store.FieldResult,
	}
}
