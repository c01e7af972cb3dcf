package importer

import (
	"strings"

	"github.com/go-faster/errors"

	"productimport/internal/catalog"
	"productimport/internal/connectors"
	"productimport/internal/rules"
)

const (
	SourceCSV = "csv"
	SourceAPI = "api"

	ConfigDraft     = "draft"
	ConfigPublished = "published"
)

var (
	ErrInvalidRequest   = errors.New("invalid import request")
	ErrMissingShop      = errors.New("missing shop identity")
	ErrSessionNotFound  = errors.New("import session not found")

	// ErrShopNotConnected is returned by a CatalogProvider for a shop with no
	// stored Admin API token.
	ErrShopNotConnected = errors.New("shop has no stored access token")
)

// Request is the bulk import payload.
type Request struct {
	DataSource     string                     `json:"dataSource"`
	CSVData        *connectors.TabularData    `json:"csvData,omitempty"`
	APICredentials *connectors.APICredentials `json:"apiCredentials,omitempty"`
	KeyMappings    map[string]string          `json:"keyMappings"`
	ImportFilters  Filters                    `json:"importFilters"`
	MarkupConfig   rules.MarkupConfig         `json:"markupConfig"`
	ImportConfig   string                     `json:"importConfig"`
	TotalProducts  int                        `json:"totalProducts"`
}

type Filters struct {
	SelectedValues []string `json:"selectedValues"`
}

func (r Request) Validate() error {
	switch r.DataSource {
	case SourceCSV:
		if r.CSVData == nil {
			return errors.Wrap(ErrInvalidRequest, "csvData is required for csv imports")
		}
	case SourceAPI:
		if r.APICredentials == nil || strings.TrimSpace(r.APICredentials.APIURL) == "" {
			return errors.Wrap(ErrInvalidRequest, "apiCredentials.apiUrl is required for api imports")
		}
	default:
		return errors.Wrapf(ErrInvalidRequest, "unsupported dataSource %q", r.DataSource)
	}
	switch r.ImportConfig {
	case "", ConfigDraft, ConfigPublished:
	default:
		return errors.Wrapf(ErrInvalidRequest, "unsupported importConfig %q", r.ImportConfig)
	}
	if r.TotalProducts < 0 {
		return errors.Wrap(ErrInvalidRequest, "totalProducts must not be negative")
	}
	return nil
}

// ProductStatus is the catalog status every product of the run gets.
func (r Request) ProductStatus() catalog.Status {
	if r.ImportConfig == ConfigPublished {
		return catalog.StatusActive
	}
	return catalog.StatusDraft
}

type ItemResult struct {
	Title     string `json:"title"`
	SKU       string `json:"sku"`
	Success   bool   `json:"success"`
	Action    string `json:"action,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Error     string `json:"error,omitempty"`
}

const (
	ActionCreated = "created"
	ActionUpdated = "updated"
)

type Result struct {
	Success       bool         `json:"success"`
	SessionID     string       `json:"sessionId"`
	Imported      int          `json:"imported"`
	Failed        int          `json:"failed"`
	TotalProducts int          `json:"totalProducts"`
	Results       []ItemResult `json:"results"`
}
