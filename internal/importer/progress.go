package importer

import (
	"context"

	"github.com/go-faster/errors"

	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/store"
)

const CompletedMessage = "Import completed"

type ProgressView struct {
	Imported       int    `json:"imported"`
	Failed         int    `json:"failed"`
	TotalProducts  int    `json:"totalProducts"`
	CurrentProduct string `json:"currentProduct"`
	Status         string `json:"status"`
}

type ProgressStore interface {
	GetSession(ctx context.Context, id string) (*models.ImportSession, error)
	LatestImportedTitle(ctx context.Context, sessionID string) (string, error)
}

// Tracker answers progress polls. The cache holds the snapshot published
// after every item; the store is authoritative for ownership and the
// fallback when the cache is cold.
type Tracker struct {
	store  ProgressStore
	cache  progress.Cache
	logger *logger.Logger
}

func NewTracker(st ProgressStore, cache progress.Cache, log *logger.Logger) *Tracker {
	return &Tracker{store: st, cache: cache, logger: log}
}

// Publish caches snap unless the cache already holds higher counters.
func (t *Tracker) Publish(ctx context.Context, snap progress.Snapshot) error {
	if t.cache == nil {
		return nil
	}
	prev, err := t.cache.Get(ctx, snap.SessionID)
	if err == nil && !snap.Newer(prev) {
		return nil
	}
	if err != nil && !errors.Is(err, progress.ErrMiss) {
		t.logger.Warn("Progress cache read failed: %v", err)
	}
	return t.cache.Set(ctx, snap)
}

// Progress reports a session's counters for shop.
func (t *Tracker) Progress(ctx context.Context, shop, sessionID string) (*ProgressView, error) {
	session, err := t.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.Shop != shop {
		return nil, ErrSessionNotFound
	}

	view := &ProgressView{
		Imported:      session.ImportedProducts,
		Failed:        session.FailedProducts,
		TotalProducts: session.TotalProducts,
		Status:        string(session.Status),
	}

	var current string
	if snap, ok := t.cached(ctx, sessionID); ok && !session.Done() {
		stored := progress.Snapshot{Imported: view.Imported, Failed: view.Failed}
		if snap.Newer(stored) {
			view.Imported, view.Failed = snap.Imported, snap.Failed
			if snap.Total > 0 {
				view.TotalProducts = snap.Total
			}
			if snap.Status != "" {
				view.Status = snap.Status
			}
		}
		current = snap.CurrentProduct
	}

	if view.Status != string(models.SessionStatusProcessing) {
		view.CurrentProduct = CompletedMessage
		return view, nil
	}
	if current == "" {
		current, err = t.store.LatestImportedTitle(ctx, sessionID)
		if err != nil {
			t.logger.Warn("Failed to load latest imported title for %s: %v", sessionID, err)
		}
	}
	view.CurrentProduct = current
	return view, nil
}

func (t *Tracker) cached(ctx context.Context, sessionID string) (progress.Snapshot, bool) {
	if t.cache == nil {
		return progress.Snapshot{}, false
	}
	snap, err := t.cache.Get(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, progress.ErrMiss) {
			t.logger.Warn("Progress cache read failed: %v", err)
		}
		return progress.Snapshot{}, false
	}
	return snap, true
}
