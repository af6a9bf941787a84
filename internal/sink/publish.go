package sink

import (
	"context"

	"interpreter-verify-service/internal/events"
	"interpreter-verify-service/internal/models"
)

// alertEvent is the compact payload sent on the alerts topic for
// high and critical risk matches.
type alertEvent struct {
	EventType   string                  `json:"eventType"`
	SessionID   string                  `json:"sessionId"`
	UtteranceID uint64                  `json:"utteranceId"`
	Risk        models.RiskLevel        `json:"risk"`
	Match       models.TerminologyMatch `json:"match"`
	Timestamp   int64                   `json:"timestamp"`
}

// Publishing forwards records to the events publisher and raises a
// separate alert per high or critical risk match.
type Publishing struct {
	pub *events.Publisher
}

// NewPublishing creates a publishing sink.
func NewPublishing(pub *events.Publisher) *Publishing {
	return &Publishing{pub: pub}
}

// Deliver implements Sink.
func (p *Publishing) Deliver(ctx context.Context, rec *models.PipelineRecord) error {
	if err := p.pub.PublishRecord(ctx, rec.SessionID, rec); err != nil {
		return err
	}
	for _, m := range rec.Matches {
		if m.Risk.Rank() < models.RiskHigh.Rank() {
			continue
		}
		alert := alertEvent{
			EventType:   "interpreter.terminology.alert",
			SessionID:   rec.SessionID,
			UtteranceID: rec.UtteranceID,
			Risk:        m.Risk,
			Match:       m,
			Timestamp:   rec.Timestamp,
		}
		if err := p.pub.PublishAlert(ctx, rec.SessionID, alert); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Sink.
func (p *Publishing) Close() error { return p.pub.Close() }
