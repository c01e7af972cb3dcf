package shopify

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProductInput is the shared shape of productCreate and productUpdate. ID is
// set only for updates.
type ProductInput struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	DescriptionHTML string   `json:"descriptionHtml"`
	Vendor          string   `json:"vendor"`
	ProductType     string   `json:"productType"`
	Tags            []string `json:"tags"`
	Status          string   `json:"status"`
}

type VariantInput struct {
	ID             string
	Price          string
	CompareAtPrice *string
	SKU            string
	Barcode        *string
}

// MarshalJSON nests the SKU under inventoryItem and leaves out unset fields,
// matching ProductVariantsBulkInput.
func (v VariantInput) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{}
	if v.ID != "" {
		m["id"] = v.ID
	}
	if v.Price != "" {
		m["price"] = v.Price
	}
	if v.CompareAtPrice != nil {
		m["compareAtPrice"] = *v.CompareAtPrice
	}
	if v.Barcode != nil {
		m["barcode"] = *v.Barcode
	}
	if v.SKU != "" {
		m["inventoryItem"] = map[string]string{"sku": v.SKU}
	}
	return json.Marshal(m)
}

type Product struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Variants struct {
		Nodes []Variant `json:"nodes"`
	} `json:"variants"`
}

// FirstVariantID is "" for a product without variants.
func (p *Product) FirstVariantID() string {
	if len(p.Variants.Nodes) == 0 {
		return ""
	}
	return p.Variants.Nodes[0].ID
}

type Variant struct {
	ID    string `json:"id"`
	SKU   string `json:"sku"`
	Price string `json:"price"`
}

type Publication struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// UserErrorsError is returned when a mutation answers with userErrors.
type UserErrorsError struct {
	Action string
	Errors []UserError
}

func (e *UserErrorsError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		message := strings.TrimSpace(err.Message)
		if len(err.Field) == 0 {
			parts = append(parts, message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(err.Field, "."), message))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("shopify %s failed with user errors", e.Action)
	}
	return fmt.Sprintf("shopify %s failed: %s", e.Action, strings.Join(parts, "; "))
}

func checkUserErrors(action string, errs []UserError) error {
	if len(errs) == 0 {
		return nil
	}
	return &UserErrorsError{Action: action, Errors: errs}
}

type graphQLError struct {
	Message string `json:"message"`
}

// GraphQLError reports top-level errors of a GraphQL response, such as
// throttling or schema violations.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return "shopify graphql error: " + strings.Join(e.Messages, "; ")
}
