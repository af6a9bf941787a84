// Package sink delivers finished pipeline records to their consumers.
package sink

import (
	"context"

	"interpreter-verify-service/internal/models"
)

// Sink receives records in utterance ID order, exactly one per
// utterance. Deliver must not block longer than the caller's context
// allows.
type Sink interface {
	Deliver(ctx context.Context, rec *models.PipelineRecord) error
	Close() error
}

// Multi fans a record out to several sinks. The first error is
// returned but every sink still sees the record.
type Multi []Sink

// Deliver implements Sink.
func (m Multi) Deliver(ctx context.Context, rec *models.PipelineRecord) error {
	var first error
	for _, s := range m {
		if err := s.Deliver(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close implements Sink.
func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
