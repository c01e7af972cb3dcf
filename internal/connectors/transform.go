// Package connectors turns CSV rows and remote API items into canonical
// catalog products.
package connectors

import (
	"fmt"
	"strconv"
	"strings"

	"productimport/internal/catalog"
	"productimport/internal/rules"
	"productimport/internal/selection"
)

var (
	titleKeys       = []string{"Title", "title", "name", "Name"}
	descriptionKeys = []string{"Description", "description", "Body (HTML)", "body_html", "descriptionHtml"}
	vendorKeys      = []string{"Vendor", "vendor", "brand", "Brand"}
	typeKeys        = []string{"Type", "type", "productType", "product_type", "category"}
	tagKeys         = []string{"Tags", "tags"}
	priceKeys       = []string{"Variant Price", "price", "Price"}
	compareAtKeys   = []string{"Variant Compare At Price", "compareAtPrice", "compare_at_price"}
	skuKeys         = []string{"SKU", "sku", "Variant SKU"}
	barcodeKeys     = []string{"Variant Barcode", "barcode", "Barcode"}
	inventoryKeys   = []string{"Variant Inventory Quantity", "inventoryQuantity", "inventory_quantity", "quantity"}
	imageKeys       = []string{"Image URL", "imageUrl", "image_url", "Image Src", "image"}
)

// FromCSV maps the selected rows of data to products. Row numbering in
// synthesized titles and SKUs follows the row's position in data, so the
// output depends only on the input.
func FromCSV(data TabularData, tokens []selection.Token, keyMappings map[string]string) []catalog.Product {
	rows := make([]map[string]string, len(data.Rows))
	for i, r := range data.Rows {
		rows[i] = applyMappings(map[string]string(r), keyMappings)
	}

	sel := selection.SelectRows(rows, tokens)
	products := make([]catalog.Product, 0, len(sel.Indices))
	for _, i := range sel.Indices {
		rec := make(map[string]interface{}, len(rows[i]))
		for k, v := range rows[i] {
			rec[k] = v
		}
		p := mapRecord(rec, i)
		products = append(products, selection.AppendTags(p, sel.Matched[i]))
	}
	return products
}

// FromItems maps decoded API items the same way FromCSV maps rows.
func FromItems(items []map[string]interface{}, tokens []selection.Token, keyMappings map[string]string) []catalog.Product {
	mapped := make([]map[string]interface{}, len(items))
	for i, item := range items {
		mapped[i] = applyMappings(item, keyMappings)
	}

	sel := selection.SelectItems(mapped, tokens)
	products := make([]catalog.Product, 0, len(sel.Indices))
	for _, i := range sel.Indices {
		p := mapRecord(mapped[i], i)
		products = append(products, selection.AppendTags(p, sel.Matched[i]))
	}
	return products
}

func mapRecord(rec map[string]interface{}, index int) catalog.Product {
	first := firstVariant(rec)
	field := func(keys []string) (string, bool) {
		if v, ok := pick(rec, keys); ok {
			return v, true
		}
		return pick(first, keys)
	}

	title, ok := pick(rec, titleKeys)
	if !ok {
		title = fmt.Sprintf("Product %d", index+1)
	}
	sku, ok := field(skuKeys)
	if !ok {
		sku = fmt.Sprintf("SKU-%d", index+1)
	}
	price := catalog.DefaultPrice
	if raw, ok := field(priceKeys); ok {
		price = catalog.NormalizePrice(raw)
	}

	variant := catalog.Variant{Price: price, SKU: sku}
	if raw, ok := field(compareAtKeys); ok {
		cmp := catalog.NormalizePrice(raw)
		variant.CompareAtPrice = &cmp
	}
	if raw, ok := field(barcodeKeys); ok {
		variant.Barcode = &raw
	}
	if raw, ok := field(inventoryKeys); ok {
		variant.InventoryQuantity = parseQuantity(raw)
	}
	if raw, ok := field(imageKeys); ok {
		variant.ImageURL = &raw
	} else if src, ok := firstImage(rec); ok {
		variant.ImageURL = &src
	}

	description, _ := pick(rec, descriptionKeys)
	vendor, _ := pick(rec, vendorKeys)
	productType, _ := pick(rec, typeKeys)

	return catalog.Product{
		Title:           title,
		DescriptionHTML: description,
		Vendor:          vendor,
		ProductType:     productType,
		Tags:            catalog.CapTags(tags(rec)),
		Status:          catalog.StatusDraft,
		Variants:        []catalog.Variant{variant},
		Extra:           rec,
	}
}

// pick returns the first non-blank scalar under any of keys.
func pick(rec map[string]interface{}, keys []string) (string, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		s, ok := rules.Stringify(v)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			return s, true
		}
	}
	return "", false
}

func tags(rec map[string]interface{}) []string {
	for _, k := range tagKeys {
		switch v := rec[k].(type) {
		case string:
			if t := catalog.SplitTags(v); len(t) > 0 {
				return t
			}
		case []interface{}:
			var out []string
			for _, e := range v {
				if s, ok := rules.Stringify(e); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return []string{}
}

func firstVariant(rec map[string]interface{}) map[string]interface{} {
	variants, ok := rec["variants"].([]interface{})
	if !ok || len(variants) == 0 {
		return nil
	}
	v, _ := variants[0].(map[string]interface{})
	return v
}

func firstImage(rec map[string]interface{}) (string, bool) {
	images, ok := rec["images"].([]interface{})
	if !ok || len(images) == 0 {
		return "", false
	}
	switch img := images[0].(type) {
	case string:
		return img, img != ""
	case map[string]interface{}:
		return pick(img, []string{"src", "url"})
	}
	return "", false
}

func parseQuantity(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return 0
		}
		n = int(f)
	}
	if n < 0 {
		return 0
	}
	return n
}
