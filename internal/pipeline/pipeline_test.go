package pipeline

import (
	"context"
	"sync"

	"interpreter-verify-service/internal/models"
)

// captureSink records deliveries for assertions.
type captureSink struct {
	mu      sync.Mutex
	records []*models.PipelineRecord
}

func (c *captureSink) Deliver(ctx context.Context, rec *models.PipelineRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) all() []*models.PipelineRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*models.PipelineRecord, len(c.records))
	copy(out, c.records)
	return out
}

func (c *captureSink) ids() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]uint64, len(c.records))
	for i, r := range c.records {
		out[i] = r.UtteranceID
	}
	return out
}
