package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productimport/internal/catalog"
	"productimport/internal/connectors"
	"productimport/internal/database"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/progress"
	"productimport/internal/rules"
	"productimport/internal/selection"
	"productimport/internal/services/shopify"
	"productimport/internal/store"
)

const testShop = "demo.myshopify.com"

type fakeCatalog struct {
	mu         sync.Mutex
	nextID     int
	created    []shopify.ProductInput
	variants   map[string][]shopify.VariantInput
	updated    []shopify.ProductInput
	published  []string
	failOn     map[string]error
	variantErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{variants: map[string][]shopify.VariantInput{}, failOn: map[string]error{}}
}

func (f *fakeCatalog) CreateProduct(_ context.Context, in shopify.ProductInput) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[in.Title]; ok {
		return nil, err
	}
	f.nextID++
	f.created = append(f.created, in)
	return &shopify.Product{ID: fmt.Sprintf("gid://shopify/Product/%d", f.nextID), Title: in.Title, Status: in.Status}, nil
}

func (f *fakeCatalog) CreateVariants(_ context.Context, productID string, v []shopify.VariantInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.variantErr != nil {
		return f.variantErr
	}
	f.variants[productID] = v
	return nil
}

func (f *fakeCatalog) PublishToAllChannels(_ context.Context, productID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, productID)
	return errors.New("no publications scope")
}

func (f *fakeCatalog) UpdateProduct(_ context.Context, in shopify.ProductInput) (*shopify.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, in)
	return &shopify.Product{ID: in.ID, Title: in.Title}, nil
}

func (f *fakeCatalog) UpdateFirstVariant(_ context.Context, productID string, v shopify.VariantInput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.variants[productID] = []shopify.VariantInput{v}
	return nil
}

func (f *fakeCatalog) priceOf(title string) string {
	for i, in := range f.created {
		if in.Title == title {
			return f.variants[fmt.Sprintf("gid://shopify/Product/%d", i+1)][0].Price
		}
	}
	return ""
}

type fakeSource struct {
	products []catalog.Product
}

func (s fakeSource) FromAPI(context.Context, connectors.APICredentials, []selection.Token, map[string]string) []catalog.Product {
	return s.products
}

type env struct {
	store   *store.Store
	catalog *fakeCatalog
	cache   *progress.MemoryCache
	tracker *Tracker
	orch    *Orchestrator
	snaps   []progress.Snapshot
}

func newEnv(t *testing.T, source Source) *env {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	e := &env{
		store:   store.New(db.DB),
		catalog: newFakeCatalog(),
		cache:   progress.NewMemoryCache(time.Minute),
	}
	e.tracker = NewTracker(e.store, e.cache, logger.Nop())
	record := SinkFunc(func(_ context.Context, snap progress.Snapshot) error {
		e.snaps = append(e.snaps, snap)
		return nil
	})
	provider := func(context.Context, string) (CatalogClient, error) { return e.catalog, nil }
	e.orch = New(e.store, provider, source, logger.Nop(), Options{}, e.tracker, record)
	return e
}

func csvRequest(rows ...connectors.Row) Request {
	return Request{
		DataSource: SourceCSV,
		CSVData:    &connectors.TabularData{Headers: []string{"Title", "Variant Price"}, Rows: rows},
	}
}

func TestRunAppliesMarkupPerProduct(t *testing.T) {
	e := newEnv(t, nil)
	req := csvRequest(
		connectors.Row{"Title": "A", "Variant Price": "10.00"},
		connectors.Row{"Title": "B", "Variant Price": "20.00"},
	)
	req.MarkupConfig = rules.MarkupConfig{
		ConditionsType: "any",
		Conditions: []rules.Condition{{
			Field: "title", Operator: rules.OpEq, Value: "A",
			MarkupType: rules.MarkupFixed, MarkupValue: rules.NewAmount("5"),
		}},
	}

	res, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 0, res.Failed)
	assert.Equal(t, 2, res.TotalProducts)
	assert.Equal(t, "15.00", e.catalog.priceOf("A"))
	assert.Equal(t, "20.00", e.catalog.priceOf("B"))

	session, err := e.store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, session.Status)
	assert.Equal(t, 2, session.ImportedProducts)
	assert.Equal(t, 0, session.FailedProducts)
	assert.NotNil(t, session.CompletedAt)

	rec, err := e.store.FindImportedByTitle(context.Background(), testShop, "A")
	require.NoError(t, err)
	assert.Equal(t, "15.00", rec.Price)
	assert.True(t, rec.MarkupApplied)
	assert.Equal(t, "5", rec.MarkupValue)
}

func TestRunIsolatesItemFailures(t *testing.T) {
	e := newEnv(t, nil)
	e.catalog.failOn["Broken"] = &shopify.UserErrorsError{Action: "productCreate", Errors: []shopify.UserError{{Message: "bad"}}}
	req := csvRequest(
		connectors.Row{"Title": "Good 1"},
		connectors.Row{"Title": "Broken"},
		connectors.Row{"Title": "Good 2"},
	)

	res, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Results, 3)
	assert.True(t, res.Results[0].Success)
	assert.False(t, res.Results[1].Success)
	assert.Contains(t, res.Results[1].Error, "bad")
	assert.True(t, res.Results[2].Success)

	session, err := e.store.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	require.NotNil(t, session.LastError)
	assert.Contains(t, *session.LastError, "bad")
}

func TestVariantFailureFailsItem(t *testing.T) {
	e := newEnv(t, nil)
	e.catalog.variantErr = errors.New("variant rejected")

	res, err := e.orch.Run(context.Background(), testShop, csvRequest(connectors.Row{"Title": "A"}))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Failed)
	_, err = e.store.FindImportedByTitle(context.Background(), testShop, "A")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPublishFailureDoesNotFailItem(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.orch.Run(context.Background(), testShop, csvRequest(connectors.Row{"Title": "A"}))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Imported)
	assert.Len(t, e.catalog.published, 1)
}

func TestRerunUpdatesExistingProducts(t *testing.T) {
	e := newEnv(t, nil)
	req := csvRequest(connectors.Row{"Title": "A", "SKU": "A-1", "Variant Price": "9"})

	first, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)
	require.Equal(t, ActionCreated, first.Results[0].Action)

	req.ImportConfig = ConfigPublished
	second, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, second.Results[0].Action)
	assert.Equal(t, first.Results[0].ProductID, second.Results[0].ProductID)
	require.Len(t, e.catalog.updated, 1)
	assert.Equal(t, "ACTIVE", e.catalog.updated[0].Status)
	assert.Len(t, e.catalog.created, 1)
}

func TestRunFallsBackToPlaceholder(t *testing.T) {
	e := newEnv(t, fakeSource{})
	req := Request{DataSource: SourceAPI, APICredentials: &connectors.APICredentials{APIURL: "https://example.test/products"}}

	res, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)

	require.Len(t, res.Results, 1)
	assert.Equal(t, "Sample Product", res.Results[0].Title)
	assert.Equal(t, "SAMPLE-1", res.Results[0].SKU)
	assert.Equal(t, 1, res.TotalProducts)
}

func TestRunUsesRemoteSourceAndSelection(t *testing.T) {
	e := newEnv(t, fakeSource{products: []catalog.Product{
		{Title: "Remote", Status: catalog.StatusDraft, Variants: []catalog.Variant{{Price: "1.00", SKU: "R-1"}}},
	}})
	req := Request{
		DataSource:     SourceAPI,
		APICredentials: &connectors.APICredentials{APIURL: "https://example.test"},
	}

	res, err := e.orch.Run(context.Background(), testShop, req)
	require.NoError(t, err)
	assert.Equal(t, "Remote", res.Results[0].Title)
}

func TestFatalErrorsAbortBeforeSession(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Run(context.Background(), "", csvRequest())
	assert.ErrorIs(t, err, ErrMissingShop)

	_, err = e.orch.Run(context.Background(), testShop, Request{DataSource: "ftp"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = e.orch.Run(context.Background(), testShop, Request{DataSource: SourceCSV})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	sessions, total, err := e.store.ListSessions(context.Background(), testShop, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, sessions)
}

func TestProgressCountersAreMonotonic(t *testing.T) {
	e := newEnv(t, nil)
	e.catalog.failOn["B"] = errors.New("boom")

	_, err := e.orch.Run(context.Background(), testShop, csvRequest(
		connectors.Row{"Title": "A"}, connectors.Row{"Title": "B"}, connectors.Row{"Title": "C"},
	))
	require.NoError(t, err)

	require.NotEmpty(t, e.snaps)
	for i := 1; i < len(e.snaps); i++ {
		assert.GreaterOrEqual(t, e.snaps[i].Imported, e.snaps[i-1].Imported)
		assert.GreaterOrEqual(t, e.snaps[i].Failed, e.snaps[i-1].Failed)
	}
	last := e.snaps[len(e.snaps)-1]
	assert.Equal(t, "completed", last.Status)
	assert.Equal(t, 2, last.Imported)
	assert.Equal(t, 1, last.Failed)
}

func TestAsyncSessionLifecycle(t *testing.T) {
	e := newEnv(t, nil)
	req := csvRequest(connectors.Row{"Title": "A"})
	req.TotalProducts = 1

	session, err := e.orch.StartSession(context.Background(), testShop, req)
	require.NoError(t, err)

	view, err := e.tracker.Progress(context.Background(), testShop, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "running", view.Status)
	assert.Equal(t, 1, view.TotalProducts)

	_, err = e.orch.RunSession(context.Background(), session.ID, "other.myshopify.com", req)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	res, err := e.orch.RunSession(context.Background(), session.ID, testShop, req)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Imported)

	again, err := e.orch.RunSession(context.Background(), session.ID, testShop, req)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Imported)
	assert.Len(t, e.catalog.created, 1)

	view, err = e.tracker.Progress(context.Background(), testShop, session.ID)
	require.NoError(t, err)
	assert.Equal(t, ProgressView{Imported: 1, Failed: 0, TotalProducts: 1, CurrentProduct: CompletedMessage, Status: "completed"}, *view)
}

func TestRunSessionProviderFailureClosesSession(t *testing.T) {
	e := newEnv(t, nil)
	e.orch.catalogs = func(context.Context, string) (CatalogClient, error) {
		return nil, errors.New("shop not connected")
	}
	req := csvRequest(connectors.Row{"Title": "A"})

	session, err := e.orch.StartSession(context.Background(), testShop, req)
	require.NoError(t, err)

	_, err = e.orch.RunSession(context.Background(), session.ID, testShop, req)
	require.Error(t, err)

	got, err := e.store.GetSession(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, got.Done())
	require.NotNil(t, got.LastError)
}

func TestProgressWhileProcessingUsesLatestTitle(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	session := &models.ImportSession{Shop: testShop, TotalProducts: 3}
	require.NoError(t, e.store.CreateSession(ctx, session))
	require.NoError(t, e.store.UpdateProgress(ctx, session.ID, models.SessionStatusProcessing, 1, 0))
	require.NoError(t, e.store.CreateImported(ctx, &models.ImportedProduct{Shop: testShop, SessionID: session.ID, ExternalID: "1", Title: "Shirt"}))

	view, err := e.tracker.Progress(ctx, testShop, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "processing", view.Status)
	assert.Equal(t, "Shirt", view.CurrentProduct)
	assert.Equal(t, 1, view.Imported)

	require.NoError(t, e.tracker.Publish(ctx, progress.Snapshot{SessionID: session.ID, Status: "processing", Imported: 2, Total: 3, CurrentProduct: "Hat"}))
	view, err = e.tracker.Progress(ctx, testShop, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Imported)
	assert.Equal(t, "Hat", view.CurrentProduct)

	require.NoError(t, e.tracker.Publish(ctx, progress.Snapshot{SessionID: session.ID, Status: "processing", Imported: 1}))
	view, err = e.tracker.Progress(ctx, testShop, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Imported)

	_, err = e.tracker.Progress(ctx, "other.myshopify.com", session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRequestDecodesPayload(t *testing.T) {
	req := Request{DataSource: SourceCSV, CSVData: &connectors.TabularData{}, ImportConfig: "live"}
	assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)

	req.ImportConfig = ConfigPublished
	assert.NoError(t, req.Validate())
	assert.Equal(t, catalog.StatusActive, req.ProductStatus())
}
