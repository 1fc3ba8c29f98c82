// Package notify composes outbound notification channels.
package notify

import (
	"context"
	"errors"

	"LineSupervisor/internal/domain"
	"LineSupervisor/internal/ports"
)

// Multi fans every notification out to all configured channels. One failing
// channel does not stop the others; errors are joined for the caller to log.
type Multi struct {
	channels []ports.Notifier
}

var _ ports.Notifier = (*Multi)(nil)

// NewMulti composes the given channels, skipping nils.
func NewMulti(channels ...ports.Notifier) *Multi {
	kept := make([]ports.Notifier, 0, len(channels))
	for _, ch := range channels {
		if ch != nil {
			kept = append(kept, ch)
		}
	}
	return &Multi{channels: kept}
}

// AnomalyDetected forwards to every channel.
func (m *Multi) AnomalyDetected(ctx context.Context, a domain.Anomaly) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.AnomalyDetected(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PartCompleted forwards to every channel.
func (m *Multi) PartCompleted(ctx context.Context, p domain.Part) error {
	var errs []error
	for _, ch := range m.channels {
		if err := ch.PartCompleted(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
