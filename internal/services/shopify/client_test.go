package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"productimport/internal/logger"
)

type recordedCall struct {
	Query     string
	Variables map[string]interface{}
}

// fakeAdmin answers GraphQL calls by matching the operation name in the
// query text.
func fakeAdmin(t *testing.T, responses map[string]string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var mu sync.Mutex
	calls := []recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-1", r.Header.Get("X-Shopify-Access-Token"))
		var body recordedCall
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, body)
		mu.Unlock()
		for op, resp := range responses {
			if strings.Contains(body.Query, op+"(") {
				_, _ = w.Write([]byte(resp))
				return
			}
		}
		t.Errorf("unexpected query: %s", body.Query)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(url string) *Client {
	return NewClient("demo", "token-1", logger.Nop(), WithEndpoint(url))
}

func TestNewClientBuildsEndpoint(t *testing.T) {
	c := NewClient("demo", "t", logger.Nop(), WithAPIVersion("2025-01"))
	assert.Equal(t, "https://demo.myshopify.com/admin/api/2025-01/graphql.json", c.endpoint)

	assert.Equal(t, "shop.example.com", ShopDomain("https://Shop.Example.com/"))
}

func TestCreateProduct(t *testing.T) {
	srv, calls := fakeAdmin(t, map[string]string{
		"productCreate": `{"data":{"productCreate":{"product":{"id":"gid://shopify/Product/1","title":"Shirt","status":"DRAFT","variants":{"nodes":[{"id":"gid://shopify/ProductVariant/9"}]}},"userErrors":[]}}}`,
	})

	p, err := newTestClient(srv.URL).CreateProduct(context.Background(), ProductInput{
		ID: "ignored", Title: "Shirt", Tags: []string{"a"}, Status: "DRAFT",
	})
	require.NoError(t, err)

	assert.Equal(t, "gid://shopify/Product/1", p.ID)
	assert.Equal(t, "gid://shopify/ProductVariant/9", p.FirstVariantID())
	require.Len(t, *calls, 1)
	product := (*calls)[0].Variables["product"].(map[string]interface{})
	assert.Equal(t, "Shirt", product["title"])
	assert.NotContains(t, product, "id")
}

func TestCreateProductUserErrors(t *testing.T) {
	srv, _ := fakeAdmin(t, map[string]string{
		"productCreate": `{"data":{"productCreate":{"product":null,"userErrors":[{"field":["title"],"message":"can't be blank"}]}}}`,
	})

	_, err := newTestClient(srv.URL).CreateProduct(context.Background(), ProductInput{})

	var ue *UserErrorsError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "shopify productCreate failed: title: can't be blank", err.Error())
}

func TestCreateVariantsSendsSKUUnderInventoryItem(t *testing.T) {
	srv, calls := fakeAdmin(t, map[string]string{
		"productVariantsBulkCreate": `{"data":{"productVariantsBulkCreate":{"productVariants":[{"id":"v1"}],"userErrors":[]}}}`,
	})
	compare := "25.00"

	err := newTestClient(srv.URL).CreateVariants(context.Background(), "gid://shopify/Product/1", []VariantInput{
		{Price: "19.99", SKU: "SH-1", CompareAtPrice: &compare},
	})
	require.NoError(t, err)

	variants := (*calls)[0].Variables["variants"].([]interface{})
	v := variants[0].(map[string]interface{})
	assert.Equal(t, "19.99", v["price"])
	assert.Equal(t, "25.00", v["compareAtPrice"])
	assert.Equal(t, map[string]interface{}{"sku": "SH-1"}, v["inventoryItem"])
	assert.NotContains(t, v, "barcode")
}

func TestPublishToAllChannels(t *testing.T) {
	srv, calls := fakeAdmin(t, map[string]string{
		"publications":       `{"data":{"publications":{"nodes":[{"id":"pub-1","name":"Online Store"},{"id":"pub-2","name":"POS"}]}}}`,
		"publishablePublish": `{"data":{"publishablePublish":{"userErrors":[]}}}`,
	})

	require.NoError(t, newTestClient(srv.URL).PublishToAllChannels(context.Background(), "gid://shopify/Product/1"))

	require.Len(t, *calls, 2)
	input := (*calls)[1].Variables["input"].([]interface{})
	assert.Len(t, input, 2)
}

func TestUpdateFirstVariant(t *testing.T) {
	srv, calls := fakeAdmin(t, map[string]string{
		"firstVariant":              `{"data":{"product":{"id":"p1","variants":{"nodes":[{"id":"v1"}]}}}}`,
		"productVariantsBulkUpdate": `{"data":{"productVariantsBulkUpdate":{"productVariants":[{"id":"v1"}],"userErrors":[]}}}`,
	})

	require.NoError(t, newTestClient(srv.URL).UpdateFirstVariant(context.Background(), "p1", VariantInput{Price: "12.00"}))

	require.Len(t, *calls, 2)
	v := (*calls)[1].Variables["variants"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "v1", v["id"])
	assert.Equal(t, "12.00", v["price"])
}

func TestUpdateProductRequiresID(t *testing.T) {
	_, err := newTestClient("http://unused").UpdateProduct(context.Background(), ProductInput{Title: "x"})
	assert.Error(t, err)
}

func TestTopLevelGraphQLErrors(t *testing.T) {
	srv, _ := fakeAdmin(t, map[string]string{
		"productUpdate": `{"errors":[{"message":"Throttled"}]}`,
	})

	_, err := newTestClient(srv.URL).UpdateProduct(context.Background(), ProductInput{ID: "p1"})

	var gqlErr *GraphQLError
	require.True(t, errors.As(err, &gqlErr))
	assert.Equal(t, []string{"Throttled"}, gqlErr.Messages)
}

func TestNon200Response(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateProduct(context.Background(), ProductInput{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
