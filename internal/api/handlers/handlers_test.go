package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productimport/internal/api/middleware"
	"productimport/internal/events"
	"productimport/internal/importer"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/store"
)

const testShop = "demo.myshopify.com"

type fakeRunner struct {
	mu       sync.Mutex
	requests []importer.Request
	ran      chan string
	runErr   error
}

func (f *fakeRunner) Run(_ context.Context, shop string, req importer.Request) (*importer.Result, error) {
	if shop == "" {
		return nil, importer.ErrMissingShop
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.runErr != nil {
		return nil, f.runErr
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &importer.Result{Success: true, SessionID: "s-1", Imported: 1, TotalProducts: 1, Results: []importer.ItemResult{}}, nil
}

func (f *fakeRunner) StartSession(_ context.Context, shop string, req importer.Request) (*models.ImportSession, error) {
	if shop == "" {
		return nil, importer.ErrMissingShop
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &models.ImportSession{ID: "s-2", Shop: shop, Status: models.SessionStatusRunning}, nil
}

func (f *fakeRunner) RunSession(_ context.Context, sessionID, _ string, _ importer.Request) (*importer.Result, error) {
	if f.ran != nil {
		f.ran <- sessionID
	}
	return &importer.Result{Success: true, SessionID: sessionID}, nil
}

type fakeProgress struct{}

func (fakeProgress) Progress(_ context.Context, shop, id string) (*importer.ProgressView, error) {
	if shop != testShop || id != "s-1" {
		return nil, importer.ErrSessionNotFound
	}
	return &importer.ProgressView{Imported: 2, TotalProducts: 3, Status: "processing", CurrentProduct: "Shirt"}, nil
}

type fakeSessions struct{}

func (fakeSessions) ListSessions(_ context.Context, shop string, page, limit int) ([]models.ImportSession, int64, error) {
	return []models.ImportSession{{ID: "s-1", Shop: shop}}, 1, nil
}

type fakeJobs struct {
	jobs []events.Job
	err  error
}

func (f *fakeJobs) PublishJob(_ context.Context, job events.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeImported struct{}

func (fakeImported) ListImported(_ context.Context, shop, search string, page, limit int) ([]models.ImportedProduct, int64, error) {
	return []models.ImportedProduct{{ID: "p-1", Shop: shop, Title: "Shirt"}}, 41, nil
}

func (fakeImported) GetImported(_ context.Context, shop, id string) (*models.ImportedProduct, error) {
	if id != "p-1" {
		return nil, store.ErrNotFound
	}
	return &models.ImportedProduct{ID: id, Shop: shop, Title: "Shirt"}, nil
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(runner *fakeRunner, jobs JobPublisher) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ShopIdentity("", nil, logger.Nop()))

	imports := NewImportHandler(runner, fakeProgress{}, fakeSessions{}, jobs, logger.Nop())
	products := NewImportedProductHandler(fakeImported{}, logger.Nop())

	r.POST("/imports", imports.Create)
	r.POST("/imports/async", imports.CreateAsync)
	r.POST("/imports/preview", imports.Preview)
	r.GET("/imports", imports.List)
	r.GET("/imports/:id/progress", imports.Progress)
	r.GET("/imported-products", products.List)
	r.GET("/imported-products/:id", products.Get)
	return r
}

func do(r http.Handler, method, path, body string, withShop bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if withShop {
		req.Header.Set(middleware.ShopDomainHeader, testShop)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const csvPayload = `{
	"dataSource": "csv",
	"csvData": {"headers": ["title", "price"], "rows": [{"title": "Shirt", "price": 19.99}]},
	"keyMappings": {},
	"importFilters": {"selectedValues": ["title::Shirt"]},
	"markupConfig": {"conditions": [], "conditionsType": "all"},
	"importConfig": "draft",
	"totalProducts": 1
}`

func TestCreateImport(t *testing.T) {
	runner := &fakeRunner{}
	w := do(newRouter(runner, nil), http.MethodPost, "/imports", csvPayload, true)

	require.Equal(t, http.StatusOK, w.Code)
	var res importer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "s-1", res.SessionID)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, "19.99", runner.requests[0].CSVData.Rows[0]["price"])
	assert.Equal(t, []string{"title::Shirt"}, runner.requests[0].ImportFilters.SelectedValues)
}

func TestCreateImportErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		withShop bool
		runErr   error
		want     int
	}{
		{name: "malformed json", body: `{"dataSource":`, withShop: true, want: http.StatusBadRequest},
		{name: "missing shop", body: csvPayload, want: http.StatusUnauthorized},
		{name: "unknown source", body: `{"dataSource":"ftp"}`, withShop: true, want: http.StatusBadRequest},
		{name: "csv without data", body: `{"dataSource":"csv"}`, withShop: true, want: http.StatusBadRequest},
		{name: "shop not connected", body: csvPayload, withShop: true, runErr: errors.Wrap(fmt.Errorf("%w: %s", importer.ErrShopNotConnected, testShop), "catalog client"), want: http.StatusConflict},
		{name: "collaborator failure", body: csvPayload, withShop: true, runErr: errors.New("no connection"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(&fakeRunner{runErr: tt.runErr}, nil), http.MethodPost, "/imports", tt.body, tt.withShop)

			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestCreateAsyncEnqueuesJob(t *testing.T) {
	jobs := &fakeJobs{}
	w := do(newRouter(&fakeRunner{}, jobs), http.MethodPost, "/imports/async", csvPayload, true)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"success":true,"sessionId":"s-2","status":"running"}`, w.Body.String())

	require.Len(t, jobs.jobs, 1)
	job := jobs.jobs[0]
	assert.Equal(t, "s-2", job.SessionID)
	assert.Equal(t, testShop, job.Shop)
	assert.NotEmpty(t, job.ID)
	assert.JSONEq(t, csvPayload, string(job.Payload))
}

func TestCreateAsyncRunsLocallyWhenQueueFails(t *testing.T) {
	runner := &fakeRunner{ran: make(chan string, 1)}
	w := do(newRouter(runner, &fakeJobs{err: errors.New("broker down")}), http.MethodPost, "/imports/async", csvPayload, true)

	require.Equal(t, http.StatusAccepted, w.Code)
	select {
	case id := <-runner.ran:
		assert.Equal(t, "s-2", id)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not run")
	}
}

func TestCreateAsyncRejectsInvalidRequest(t *testing.T) {
	jobs := &fakeJobs{}
	w := do(newRouter(&fakeRunner{}, jobs), http.MethodPost, "/imports/async", `{"dataSource":"api"}`, true)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, jobs.jobs)
}

func TestProgress(t *testing.T) {
	r := newRouter(&fakeRunner{}, nil)

	w := do(r, http.MethodGet, "/imports/s-1/progress", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"imported":2,"failed":0,"totalProducts":3,"currentProduct":"Shirt","status":"processing"}`, w.Body.String())

	w = do(r, http.MethodGet, "/imports/missing/progress", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSessions(t *testing.T) {
	r := newRouter(&fakeRunner{}, nil)

	w := do(r, http.MethodGet, "/imports?page=0&limit=500", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data       []models.ImportSession `json:"data"`
		Pagination map[string]int         `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Data, 1)
	assert.Equal(t, map[string]int{"page": 1, "limit": 20, "total": 1}, body.Pagination)

	w = do(r, http.MethodGet, "/imports", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPreviewUpload(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("title,vendor\nShirt,Acme\nHat,Acme\nSock,Other\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(middleware.ShopDomainHeader, testShop)
	w := httptest.NewRecorder()
	newRouter(&fakeRunner{}, nil).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Headers []string            `json:"headers"`
		Values  map[string][]string `json:"values"`
		Total   int                 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"title", "vendor"}, body.Headers)
	assert.Equal(t, []string{"Acme", "Other"}, body.Values["vendor"])
	assert.Equal(t, 3, body.Total)
}

func TestPreviewRequiresFile(t *testing.T) {
	w := do(newRouter(&fakeRunner{}, nil), http.MethodPost, "/imports/preview", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportedProducts(t *testing.T) {
	r := newRouter(&fakeRunner{}, nil)

	w := do(r, http.MethodGet, "/imported-products?search=shi&limit=10", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":41`)
	assert.Contains(t, w.Body.String(), `"limit":10`)

	w = do(r, http.MethodGet, "/imported-products/p-1", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/imported-products/p-9", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/imported-products", "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
