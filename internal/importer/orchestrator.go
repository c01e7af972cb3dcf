// Package importer drives a bulk import: it resolves the source products,
// prices them, pushes them one by one to the shop's catalog and keeps the
// session's progress counters current.
package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"productimport/internal/catalog"
	"productimport/internal/connectors"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/selection"
	"productimport/internal/services/shopify"
	"productimport/internal/store"
)

const DefaultItemDelay = 100 * time.Millisecond

// CatalogClient is the slice of the Admin API an import needs.
type CatalogClient interface {
	CreateProduct(ctx context.Context, input shopify.ProductInput) (*shopify.Product, error)
	CreateVariants(ctx context.Context, productID string, variants []shopify.VariantInput) error
	PublishToAllChannels(ctx context.Context, productID string) error
	UpdateProduct(ctx context.Context, input shopify.ProductInput) (*shopify.Product, error)
	UpdateFirstVariant(ctx context.Context, productID string, variant shopify.VariantInput) error
}

// CatalogProvider returns a client authorized for shop.
type CatalogProvider func(ctx context.Context, shop string) (CatalogClient, error)

type Store interface {
	CreateSession(ctx context.Context, session *models.ImportSession) error
	GetSession(ctx context.Context, id string) (*models.ImportSession, error)
	SetSessionTotal(ctx context.Context, id string, total int) error
	UpdateProgress(ctx context.Context, id string, status models.SessionStatus, imported, failed int) error
	CompleteSession(ctx context.Context, id string, imported, failed int, lastError *string, at time.Time) error
	FindImportedBySKU(ctx context.Context, shop, sku string) (*models.ImportedProduct, error)
	FindImportedByTitle(ctx context.Context, shop, title string) (*models.ImportedProduct, error)
	CreateImported(ctx context.Context, p *models.ImportedProduct) error
}

// Source fetches products from a remote API.
type Source interface {
	FromAPI(ctx context.Context, creds connectors.APICredentials, tokens []selection.Token, keyMappings map[string]string) []catalog.Product
}

// ProgressSink receives a snapshot after every processed item.
type ProgressSink interface {
	Publish(ctx context.Context, snap progress.Snapshot) error
}

type SinkFunc func(ctx context.Context, snap progress.Snapshot) error

func (f SinkFunc) Publish(ctx context.Context, snap progress.Snapshot) error { return f(ctx, snap) }

type Options struct {
	// ItemDelay is the pause before each item. Zero disables it.
	ItemDelay time.Duration
	Now       func() time.Time
}

type Orchestrator struct {
	store    Store
	catalogs CatalogProvider
	remote   Source
	logger   *logger.Logger
	opts     Options
	sinks    []ProgressSink
}

func New(st Store, catalogs CatalogProvider, remote Source, log *logger.Logger, opts Options, sinks ...ProgressSink) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ItemDelay < 0 {
		opts.ItemDelay = 0
	}
	return &Orchestrator{
		store:    st,
		catalogs: catalogs,
		remote:   remote,
		logger:   log,
		opts:     opts,
		sinks:    sinks,
	}
}

// Run executes a whole import synchronously.
func (o *Orchestrator) Run(ctx context.Context, shop string, req Request) (*Result, error) {
	if err := checkRequest(shop, req); err != nil {
		return nil, err
	}
	client, err := o.catalogs(ctx, shop)
	if err != nil {
		return nil, errors.Wrap(err, "catalog client")
	}
	session, err := o.createSession(ctx, shop, req)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, session, client, req), nil
}

// StartSession validates req and records a new session without processing
// anything, for runs handed off to a worker.
func (o *Orchestrator) StartSession(ctx context.Context, shop string, req Request) (*models.ImportSession, error) {
	if err := checkRequest(shop, req); err != nil {
		return nil, err
	}
	return o.createSession(ctx, shop, req)
}

// RunSession processes a session created by StartSession.
func (o *Orchestrator) RunSession(ctx context.Context, sessionID, shop string, req Request) (*Result, error) {
	if err := checkRequest(shop, req); err != nil {
		return nil, err
	}
	session, err := o.store.GetSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrap(ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	if session.Shop != shop {
		return nil, errors.Wrap(ErrSessionNotFound, sessionID)
	}
	if session.Done() {
		o.logger.Info("Import session %s already completed, skipping", sessionID)
		return resultFromSession(session), nil
	}

	client, err := o.catalogs(ctx, shop)
	if err != nil {
		msg := err.Error()
		if cerr := o.store.CompleteSession(ctx, session.ID, 0, 0, &msg, o.opts.Now()); cerr != nil {
			o.logger.Error("Failed to close import session %s: %v", session.ID, cerr)
		}
		sessionsFinished.WithLabelValues("aborted").Inc()
		return nil, errors.Wrap(err, "catalog client")
	}
	return o.run(ctx, session, client, req), nil
}

func checkRequest(shop string, req Request) error {
	if strings.TrimSpace(shop) == "" {
		return ErrMissingShop
	}
	return req.Validate()
}

func (o *Orchestrator) createSession(ctx context.Context, shop string, req Request) (*models.ImportSession, error) {
	session := &models.ImportSession{
		Shop:          shop,
		Status:        models.SessionStatusRunning,
		DataSource:    req.DataSource,
		TotalProducts: req.TotalProducts,
	}
	if err := o.store.CreateSession(ctx, session); err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return session, nil
}

type runState struct {
	session  *models.ImportSession
	total    int
	imported int
	failed   int
	lastErr  string
	results  []ItemResult
}

func (o *Orchestrator) run(ctx context.Context, session *models.ImportSession, client CatalogClient, req Request) *Result {
	// A started run always finishes, even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	log := o.logger.With("session", session.ID, "shop", session.Shop)
	ctx = logger.WithContext(ctx, log)

	activeSessions.Inc()
	defer activeSessions.Dec()

	products := o.resolveProducts(ctx, req)
	st := &runState{
		session: session,
		total:   len(products),
		results: make([]ItemResult, 0, len(products)),
	}
	if err := o.store.SetSessionTotal(ctx, session.ID, st.total); err != nil {
		log.Error("Failed to record session total: %v", err)
	}
	log.Info("Importing %d products from %s", st.total, req.DataSource)

	cfg := itemConfig{
		shop:      session.Shop,
		sessionID: session.ID,
		status:    req.ProductStatus(),
		markup:    req.MarkupConfig,
	}
	for i, p := range products {
		o.pause(ctx)
		o.persist(ctx, st, models.SessionStatusProcessing, "")

		start := time.Now()
		res := o.processItem(ctx, client, cfg, p)
		itemDuration.Observe(time.Since(start).Seconds())

		if res.Success {
			st.imported++
			itemsProcessed.WithLabelValues("success", res.Action).Inc()
			log.Debug("Product %d/%d %s: %s", i+1, st.total, res.Action, res.Title)
		} else {
			st.failed++
			st.lastErr = res.Error
			itemsProcessed.WithLabelValues("failure", "").Inc()
			log.Error("Product %d/%d failed: %s: %s", i+1, st.total, res.Title, res.Error)
		}
		st.results = append(st.results, res)

		current := ""
		if res.Success {
			current = res.Title
		}
		o.persist(ctx, st, models.SessionStatusProcessing, current)
	}

	var lastErr *string
	if st.lastErr != "" {
		lastErr = &st.lastErr
	}
	if err := o.store.CompleteSession(ctx, session.ID, st.imported, st.failed, lastErr, o.opts.Now()); err != nil {
		log.Error("Failed to complete import session: %v", err)
	}
	o.publish(ctx, st, models.SessionStatusCompleted, "")
	sessionsFinished.WithLabelValues(string(models.SessionStatusCompleted)).Inc()
	log.Info("Import finished: %d imported, %d failed, %d total", st.imported, st.failed, st.total)

	return &Result{
		Success:       true,
		SessionID:     session.ID,
		Imported:      st.imported,
		Failed:        st.failed,
		TotalProducts: st.total,
		Results:       st.results,
	}
}

// persist writes the counters and announces them. Failures are logged; the
// run keeps going.
func (o *Orchestrator) persist(ctx context.Context, st *runState, status models.SessionStatus, current string) {
	if err := o.store.UpdateProgress(ctx, st.session.ID, status, st.imported, st.failed); err != nil {
		logger.FromContext(ctx).Error("Failed to update session progress: %v", err)
	}
	o.publish(ctx, st, status, current)
}

func (o *Orchestrator) publish(ctx context.Context, st *runState, status models.SessionStatus, current string) {
	snap := progress.Snapshot{
		SessionID:      st.session.ID,
		Status:         string(status),
		Imported:       st.imported,
		Failed:         st.failed,
		Total:          st.total,
		CurrentProduct: current,
		UpdatedAt:      o.opts.Now(),
	}
	for _, sink := range o.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			logger.FromContext(ctx).Warn("Failed to publish progress: %v", err)
		}
	}
}

func (o *Orchestrator) pause(ctx context.Context) {
	if o.opts.ItemDelay <= 0 {
		return
	}
	t := time.NewTimer(o.opts.ItemDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// resolveProducts never returns an empty list: a run without products
// imports a single placeholder.
func (o *Orchestrator) resolveProducts(ctx context.Context, req Request) []catalog.Product {
	tokens := selection.ParseTokens(req.ImportFilters.SelectedValues)

	var products []catalog.Product
	switch req.DataSource {
	case SourceCSV:
		products = connectors.FromCSV(*req.CSVData, tokens, req.KeyMappings)
	case SourceAPI:
		if o.remote != nil {
			products = o.remote.FromAPI(ctx, *req.APICredentials, tokens, req.KeyMappings)
		}
	}

	if len(products) == 0 {
		logger.FromContext(ctx).Warn("No products resolved, importing placeholder product")
		return []catalog.Product{placeholderProduct()}
	}
	return products
}

func placeholderProduct() catalog.Product {
	return catalog.Product{
		Title:           "Sample Product",
		DescriptionHTML: "<p>Sample product created by import</p>",
		Vendor:          "Import",
		ProductType:     "General",
		Tags:            []string{"imported"},
		Status:          catalog.StatusDraft,
		Variants: []catalog.Variant{{
			Price: catalog.DefaultPrice,
			SKU:   "SAMPLE-1",
		}},
	}
}

func resultFromSession(s *models.ImportSession) *Result {
	return &Result{
		Success:       true,
		SessionID:     s.ID,
		Imported:      s.ImportedProducts,
		Failed:        s.FailedProducts,
		TotalProducts: s.TotalProducts,
		Results:       []ItemResult{},
	}
}

func panicError(r interface{}) error {
	return fmt.Errorf("panic: %v", r)
}
