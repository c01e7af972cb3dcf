// Package progress caches the latest counters of running imports so that
// polling clients do not hit the database on every request.
package progress

import (
	"context"
	"errors"
	"time"
)

var ErrMiss = errors.New("progress: cache miss")

type Snapshot struct {
	SessionID      string    `json:"sessionId"`
	Status         string    `json:"status"`
	Imported       int       `json:"imported"`
	Failed         int       `json:"failed"`
	Total          int       `json:"totalProducts"`
	CurrentProduct string    `json:"currentProduct,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Newer reports whether s carries at least the counts of other.
func (s Snapshot) Newer(other Snapshot) bool {
	return s.Imported >= other.Imported && s.Failed >= other.Failed
}

type Cache interface {
	Get(ctx context.Context, sessionID string) (Snapshot, error)
	Set(ctx context.Context, snap Snapshot) error
	Close() error
}

func key(sessionID string) string {
	return "import:progress:" + sessionID
}
