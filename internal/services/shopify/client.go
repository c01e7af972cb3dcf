package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"productimport/internal/logger"
)

const DefaultAPIVersion = "2024-10"

type Client struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	endpoint    string
	httpClient  *http.Client
	logger      *logger.Logger
}

type Option func(*Client)

func WithAPIVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithEndpoint overrides the GraphQL URL derived from the shop domain.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(shopDomain, accessToken string, logger *logger.Logger, opts ...Option) *Client {
	c := &Client{
		shopDomain:  ShopDomain(shopDomain),
		accessToken: accessToken,
		apiVersion:  DefaultAPIVersion,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		c.endpoint = fmt.Sprintf("https://%s/admin/api/%s/graphql.json", c.shopDomain, c.apiVersion)
	}
	return c
}

// ShopDomain expands a bare shop handle to its myshopify.com domain.
func ShopDomain(shop string) string {
	shop = strings.TrimSpace(strings.ToLower(shop))
	shop = strings.TrimPrefix(strings.TrimPrefix(shop, "https://"), "http://")
	shop = strings.TrimSuffix(shop, "/")
	if shop != "" && !strings.Contains(shop, ".") {
		shop += ".myshopify.com"
	}
	return shop
}

const productCreateMutation = `mutation productCreate($product: ProductCreateInput!) {
  productCreate(product: $product) {
    product { id title status variants(first: 1) { nodes { id sku price } } }
    userErrors { field message }
  }
}`

// CreateProduct creates the product shell. Shopify adds a default variant,
// which CreateVariants replaces.
func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	input.ID = ""
	var data struct {
		ProductCreate struct {
			Product    *Product    `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productCreate"`
	}
	if err := c.do(ctx, productCreateMutation, map[string]interface{}{"product": input}, &data); err != nil {
		return nil, err
	}
	if err := checkUserErrors("productCreate", data.ProductCreate.UserErrors); err != nil {
		return nil, err
	}
	if data.ProductCreate.Product == nil {
		return nil, fmt.Errorf("shopify productCreate returned no product")
	}
	c.logger.Debug("Created product %s (%s)", data.ProductCreate.Product.ID, input.Title)
	return data.ProductCreate.Product, nil
}

const variantsBulkCreateMutation = `mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants, strategy: REMOVE_STANDALONE_VARIANT) {
    productVariants { id sku price }
    userErrors { field message }
  }
}`

func (c *Client) CreateVariants(ctx context.Context, productID string, variants []VariantInput) error {
	if len(variants) == 0 {
		return nil
	}
	var data struct {
		ProductVariantsBulkCreate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkCreate"`
	}
	vars := map[string]interface{}{"productId": productID, "variants": variants}
	if err := c.do(ctx, variantsBulkCreateMutation, vars, &data); err != nil {
		return err
	}
	return checkUserErrors("productVariantsBulkCreate", data.ProductVariantsBulkCreate.UserErrors)
}

const publicationsQuery = `query publications {
  publications(first: 50) { nodes { id name } }
}`

const publishMutation = `mutation publishablePublish($id: ID!, $input: [PublicationInput!]!) {
  publishablePublish(id: $id, input: $input) {
    userErrors { field message }
  }
}`

// PublishToAllChannels publishes the product on every sales channel the app
// can see.
func (c *Client) PublishToAllChannels(ctx context.Context, productID string) error {
	var pubs struct {
		Publications struct {
			Nodes []Publication `json:"nodes"`
		} `json:"publications"`
	}
	if err := c.do(ctx, publicationsQuery, nil, &pubs); err != nil {
		return err
	}
	if len(pubs.Publications.Nodes) == 0 {
		return nil
	}

	input := make([]map[string]string, 0, len(pubs.Publications.Nodes))
	for _, p := range pubs.Publications.Nodes {
		input = append(input, map[string]string{"publicationId": p.ID})
	}
	var data struct {
		PublishablePublish struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"publishablePublish"`
	}
	if err := c.do(ctx, publishMutation, map[string]interface{}{"id": productID, "input": input}, &data); err != nil {
		return err
	}
	return checkUserErrors("publishablePublish", data.PublishablePublish.UserErrors)
}

const productUpdateMutation = `mutation productUpdate($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    product { id title status variants(first: 1) { nodes { id sku price } } }
    userErrors { field message }
  }
}`

func (c *Client) UpdateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	if input.ID == "" {
		return nil, fmt.Errorf("shopify productUpdate requires a product id")
	}
	var data struct {
		ProductUpdate struct {
			Product    *Product    `json:"product"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"productUpdate"`
	}
	if err := c.do(ctx, productUpdateMutation, map[string]interface{}{"product": input}, &data); err != nil {
		return nil, err
	}
	if err := checkUserErrors("productUpdate", data.ProductUpdate.UserErrors); err != nil {
		return nil, err
	}
	if data.ProductUpdate.Product == nil {
		return nil, fmt.Errorf("shopify productUpdate returned no product")
	}
	return data.ProductUpdate.Product, nil
}

const firstVariantQuery = `query firstVariant($id: ID!) {
  product(id: $id) { id variants(first: 1) { nodes { id sku price } } }
}`

const variantsBulkUpdateMutation = `mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id }
    userErrors { field message }
  }
}`

// UpdateFirstVariant applies v to the product's first existing variant. A
// product without variants is left alone.
func (c *Client) UpdateFirstVariant(ctx context.Context, productID string, v VariantInput) error {
	var lookup struct {
		Product *Product `json:"product"`
	}
	if err := c.do(ctx, firstVariantQuery, map[string]interface{}{"id": productID}, &lookup); err != nil {
		return err
	}
	if lookup.Product == nil {
		return fmt.Errorf("shopify product %s not found", productID)
	}
	v.ID = lookup.Product.FirstVariantID()
	if v.ID == "" {
		return nil
	}

	var data struct {
		ProductVariantsBulkUpdate struct {
			UserErrors []UserError `json:"userErrors"`
		} `json:"productVariantsBulkUpdate"`
	}
	vars := map[string]interface{}{"productId": productID, "variants": []VariantInput{v}}
	if err := c.do(ctx, variantsBulkUpdateMutation, vars, &data); err != nil {
		return err
	}
	return checkUserErrors("productVariantsBulkUpdate", data.ProductVariantsBulkUpdate.UserErrors)
}

func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed: %d - %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		msgs := make([]string, len(envelope.Errors))
		for i, e := range envelope.Errors {
			msgs[i] = e.Message
		}
		return &GraphQLError{Messages: msgs}
	}
	if out == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}
