package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"LineSupervisor/internal/ports"
)

// Poller turns the append-only event log into a bounded unit of work per
// tick. Events are dispatched strictly sequentially in ascending id order —
// rule evaluation depends on "the previous event for the same part", which
// must reflect a consistent linear history.
type Poller struct {
	events    ports.EventStore
	cursor    ports.CursorStore
	detector  *Detector
	lifecycle *Lifecycle
	logger    *slog.Logger
}

// NewPoller wires the cursor loop.
func NewPoller(events ports.EventStore, cursor ports.CursorStore, detector *Detector, lifecycle *Lifecycle, logger *slog.Logger) *Poller {
	return &Poller{events: events, cursor: cursor, detector: detector, lifecycle: lifecycle, logger: logger}
}

// Tick processes every event recorded since the stored cursor. The cursor
// advances durably only after the whole batch completed, so a crash
// mid-batch reprocesses from the old cursor (at-least-once; the
// anomaly-per-event uniqueness downstream absorbs duplicates). A single
// event's failure is logged and skipped rather than wedging the loop.
func (p *Poller) Tick(ctx context.Context) error {
	maxID, err := p.events.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("read max event id: %w", err)
	}

	cur, err := p.cursor.Load(ctx)
	if err != nil {
		return fmt.Errorf("load runner cursor: %w", err)
	}
	if maxID <= cur.LastEventID {
		return nil
	}

	batch, err := p.events.ListAfter(ctx, cur.LastEventID)
	if err != nil {
		return fmt.Errorf("list events after %d: %w", cur.LastEventID, err)
	}
	if len(batch) == 0 {
		return nil
	}

	p.logger.Debug("processing event batch", "from", cur.LastEventID, "count", len(batch))

	for _, event := range batch {
		if _, err := p.detector.DetectAndPersist(ctx, event); err != nil {
			p.logger.Error("detection failed, skipping event", "event_id", event.ID, "error", err)
		}
		if err := p.lifecycle.HandleEvent(ctx, event); err != nil {
			p.logger.Error("lifecycle handling failed, skipping event", "event_id", event.ID, "error", err)
		}
	}

	last := batch[len(batch)-1].ID
	if err := p.cursor.AdvanceEvent(ctx, last); err != nil {
		return fmt.Errorf("advance event cursor to %d: %w", last, err)
	}

	p.logger.Info("event batch processed", "count", len(batch), "cursor", last)
	return nil
}
