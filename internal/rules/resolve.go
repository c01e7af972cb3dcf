// Package rules resolves product fields and evaluates the filter and
// markup conditions a user configures for an import.
package rules

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"productimport/internal/catalog"
)

// Value is a resolved field: either a scalar or, for tag-like fields, a list.
type Value struct {
	Scalar string
	List   []string
	IsList bool
}

func scalar(s string) Value { return Value{Scalar: s} }

func list(items []string) Value { return Value{List: items, IsList: true} }

type resolverFunc func(p catalog.Product) (Value, bool)

var overrides = map[string]resolverFunc{
	"price":         resolvePrice,
	"Variant Price": resolvePrice,
	"title":         resolveTitle,
	"Title":         resolveTitle,
	"sku":           resolveSKU,
	"SKU":           resolveSKU,
	"tags":          resolveTags,
	"Tags":          resolveTags,
	"tag":           resolveTags,
	"vendor":        resolveVendor,
	"Vendor":        resolveVendor,
	"type":          resolveType,
	"Type":          resolveType,
}

// Resolve extracts a comparable value for field. Dotted names walk the
// product as a nested document. The bool is false when nothing was found.
func Resolve(p catalog.Product, field string) (Value, bool) {
	if strings.Contains(field, ".") {
		return resolvePath(p, strings.Split(field, "."))
	}
	if fn, ok := overrides[field]; ok {
		if v, ok := fn(p); ok {
			return v, true
		}
	}
	return lookup(p, field)
}

func resolvePrice(p catalog.Product) (Value, bool) {
	if price := p.PrimaryPrice(); price != "" {
		return scalar(price), true
	}
	return Value{}, false
}

func resolveTitle(p catalog.Product) (Value, bool) {
	return scalar(p.Title), p.Title != ""
}

func resolveSKU(p catalog.Product) (Value, bool) {
	if sku := p.PrimarySKU(); sku != "" {
		return scalar(sku), true
	}
	return Value{}, false
}

func resolveTags(p catalog.Product) (Value, bool) {
	if p.Tags == nil {
		return Value{}, false
	}
	return list(p.Tags), true
}

func resolveVendor(p catalog.Product) (Value, bool) {
	return scalar(p.Vendor), p.Vendor != ""
}

func resolveType(p catalog.Product) (Value, bool) {
	return scalar(p.ProductType), p.ProductType != ""
}

// lookup is the generic property access: canonical fields by their JSON
// name first, then the raw source record.
func lookup(p catalog.Product, field string) (Value, bool) {
	doc := document(p)
	if v, ok := doc[field]; ok && v != nil {
		return toValue(v)
	}
	return Value{}, false
}

func resolvePath(p catalog.Product, segments []string) (Value, bool) {
	var cur interface{} = document(p)
	for _, seg := range segments {
		switch node := cur.(type) {
		case map[string]interface{}:
			next, ok := node[seg]
			if !ok {
				return Value{}, false
			}
			cur = next
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return Value{}, false
			}
			cur = node[i]
		default:
			return Value{}, false
		}
	}
	if cur == nil {
		return Value{}, false
	}
	return toValue(cur)
}

// document flattens p into the map shape a dotted path walks. Raw source
// properties sit underneath the canonical ones.
func document(p catalog.Product) map[string]interface{} {
	doc := make(map[string]interface{}, len(p.Extra)+10)
	for k, v := range p.Extra {
		doc[k] = v
	}
	doc["title"] = p.Title
	doc["descriptionHtml"] = p.DescriptionHTML
	doc["vendor"] = p.Vendor
	doc["productType"] = p.ProductType
	doc["status"] = string(p.Status)
	if p.Tags != nil {
		tags := make([]interface{}, len(p.Tags))
		for i, t := range p.Tags {
			tags[i] = t
		}
		doc["tags"] = tags
	}
	if len(p.Variants) > 0 {
		variants := make([]interface{}, len(p.Variants))
		for i, v := range p.Variants {
			variants[i] = variantDocument(v)
		}
		doc["variants"] = variants
	}
	if p.Price != "" {
		doc["price"] = p.Price
	}
	if p.SKU != "" {
		doc["sku"] = p.SKU
	}
	return doc
}

func variantDocument(v catalog.Variant) map[string]interface{} {
	m := map[string]interface{}{
		"price":             v.Price,
		"sku":               v.SKU,
		"inventoryQuantity": v.InventoryQuantity,
	}
	if v.CompareAtPrice != nil {
		m["compareAtPrice"] = *v.CompareAtPrice
	}
	if v.Barcode != nil {
		m["barcode"] = *v.Barcode
	}
	if v.ImageURL != nil {
		m["imageUrl"] = *v.ImageURL
	}
	return m
}

func toValue(v interface{}) (Value, bool) {
	switch t := v.(type) {
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := stringify(e); ok {
				items = append(items, s)
			}
		}
		return list(items), true
	case []string:
		return list(t), true
	case map[string]interface{}:
		return Value{}, false
	}
	s, ok := stringify(v)
	if !ok {
		return Value{}, false
	}
	return scalar(s), true
}

// stringify renders a decoded JSON scalar the way a user would type it.
func stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case bool:
		return strconv.FormatBool(t), true
	case map[string]interface{}, []interface{}:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

// Stringify is exported for callers that need the same scalar rendering
// (selection over raw API items).
func Stringify(v interface{}) (string, bool) { return stringify(v) }
