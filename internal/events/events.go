// Package events carries import jobs and progress updates over Kafka.
package events

import (
	"encoding/json"
	"time"
)

// Job asks a worker to run an import for a session that already exists.
type Job struct {
	ID        string          `json:"id"`
	SessionID string          `json:"sessionId"`
	Shop      string          `json:"shop"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// ProgressEvent mirrors the counters persisted after each item.
type ProgressEvent struct {
	SessionID      string    `json:"sessionId"`
	Shop           string    `json:"shop,omitempty"`
	Status         string    `json:"status"`
	Imported       int       `json:"imported"`
	Failed         int       `json:"failed"`
	TotalProducts  int       `json:"totalProducts"`
	CurrentProduct string    `json:"currentProduct,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
