// Package catalog holds the canonical product shape every import source is
// normalized into before selection, pricing and publishing.
package catalog

type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusDraft  Status = "DRAFT"
)

type Variant struct {
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compareAtPrice,omitempty"`
	SKU               string  `json:"sku"`
	Barcode           *string `json:"barcode,omitempty"`
	InventoryQuantity int     `json:"inventoryQuantity"`
	ImageURL          *string `json:"imageUrl,omitempty"`
}

type Product struct {
	Title           string    `json:"title"`
	DescriptionHTML string    `json:"descriptionHtml"`
	Vendor          string    `json:"vendor"`
	ProductType     string    `json:"productType"`
	Tags            []string  `json:"tags"`
	Status          Status    `json:"status"`
	Variants        []Variant `json:"variants"`

	// Top-level fallbacks consulted when there is no variant.
	Price string `json:"price,omitempty"`
	SKU   string `json:"sku,omitempty"`

	// Extra keeps the raw source record so rules can reference arbitrary
	// columns or nested API properties.
	Extra map[string]interface{} `json:"-"`

	MarkupApplied bool   `json:"markupApplied,omitempty"`
	MarkupType    string `json:"markupType,omitempty"`
	MarkupValue   string `json:"markupValue,omitempty"`
}

// Clone returns a copy that shares no slices with p. Extra is copied
// shallowly; its values are treated as read-only.
func (p Product) Clone() Product {
	out := p
	if p.Tags != nil {
		out.Tags = append(make([]string, 0, len(p.Tags)), p.Tags...)
	}
	if p.Variants != nil {
		out.Variants = make([]Variant, len(p.Variants))
		for i, v := range p.Variants {
			out.Variants[i] = v.clone()
		}
	}
	if p.Extra != nil {
		out.Extra = make(map[string]interface{}, len(p.Extra))
		for k, v := range p.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func (v Variant) clone() Variant {
	out := v
	out.CompareAtPrice = copyString(v.CompareAtPrice)
	out.Barcode = copyString(v.Barcode)
	out.ImageURL = copyString(v.ImageURL)
	return out
}

// PrimaryPrice is the first variant's price, else the product-level price.
func (p Product) PrimaryPrice() string {
	if len(p.Variants) > 0 && p.Variants[0].Price != "" {
		return p.Variants[0].Price
	}
	return p.Price
}

// WithPrimaryPrice returns a copy with the price written where PrimaryPrice
// reads it from.
func (p Product) WithPrimaryPrice(price string) Product {
	out := p.Clone()
	if len(out.Variants) > 0 {
		out.Variants[0].Price = price
	} else {
		out.Price = price
	}
	return out
}

// PrimarySKU is the first variant's SKU, else the product-level SKU.
func (p Product) PrimarySKU() string {
	if len(p.Variants) > 0 && p.Variants[0].SKU != "" {
		return p.Variants[0].SKU
	}
	return p.SKU
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
