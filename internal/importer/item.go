package importer

import (
	"context"

	"github.com/go-faster/errors"

	"productimport/internal/catalog"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/rules"
	"productimport/internal/services/shopify"
	"productimport/internal/store"
)

// itemConfig is what every item of one run shares.
type itemConfig struct {
	shop      string
	sessionID string
	status    catalog.Status
	markup    rules.MarkupConfig
}

// processItem pushes one product and reports the outcome. It never panics
// and never returns an error; failures are part of the result.
func (o *Orchestrator) processItem(ctx context.Context, client CatalogClient, cfg itemConfig, p catalog.Product) (res ItemResult) {
	res = ItemResult{Title: p.Title, SKU: p.PrimarySKU()}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Action = ""
			res.Error = panicError(r).Error()
		}
	}()

	priced := rules.Apply(p, cfg.markup)
	priced.Status = cfg.status
	priced.Tags = catalog.CapTags(priced.Tags)

	existing, err := o.findExisting(ctx, cfg.shop, priced)
	if err != nil {
		res.Error = err.Error()
		return res
	}

	var productID string
	if existing != nil {
		productID, err = o.update(ctx, client, existing.ExternalID, priced)
		res.Action = ActionUpdated
	} else {
		productID, err = o.create(ctx, client, priced)
		res.Action = ActionCreated
	}
	if err != nil {
		res.Action = ""
		res.Error = err.Error()
		return res
	}

	res.Success = true
	res.ProductID = productID

	record := importedRecord(cfg.shop, cfg.sessionID, productID, priced)
	if err := o.store.CreateImported(ctx, record); err != nil {
		logger.FromContext(ctx).Error("Failed to save imported product %s: %v", priced.Title, err)
	}
	return res
}

// findExisting looks up an earlier import of the same product, by SKU
// first, then by title.
func (o *Orchestrator) findExisting(ctx context.Context, shop string, p catalog.Product) (*models.ImportedProduct, error) {
	rec, err := o.store.FindImportedBySKU(ctx, shop, p.PrimarySKU())
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup by sku")
	}
	rec, err = o.store.FindImportedByTitle(ctx, shop, p.Title)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, errors.Wrap(err, "lookup by title")
	}
	return nil, nil
}

func (o *Orchestrator) create(ctx context.Context, client CatalogClient, p catalog.Product) (string, error) {
	created, err := client.CreateProduct(ctx, productInput(p, ""))
	if err != nil {
		return "", errors.Wrap(err, "create product")
	}
	if err := client.CreateVariants(ctx, created.ID, variantInputs(p)); err != nil {
		return "", errors.Wrap(err, "create variants")
	}
	if err := client.PublishToAllChannels(ctx, created.ID); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish %s to sales channels: %v", created.ID, err)
	}
	return created.ID, nil
}

func (o *Orchestrator) update(ctx context.Context, client CatalogClient, productID string, p catalog.Product) (string, error) {
	updated, err := client.UpdateProduct(ctx, productInput(p, productID))
	if err != nil {
		return "", errors.Wrap(err, "update product")
	}
	v := variantInputs(p)[0]
	v.CompareAtPrice = nil
	if err := client.UpdateFirstVariant(ctx, updated.ID, v); err != nil {
		logger.FromContext(ctx).Warn("Failed to update first variant of %s: %v", updated.ID, err)
	}
	return updated.ID, nil
}

func productInput(p catalog.Product, id string) shopify.ProductInput {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return shopify.ProductInput{
		ID:              id,
		Title:           p.Title,
		DescriptionHTML: p.DescriptionHTML,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Tags:            tags,
		Status:          string(p.Status),
	}
}

// variantInputs always yields at least one variant, falling back to the
// product-level price and SKU.
func variantInputs(p catalog.Product) []shopify.VariantInput {
	if len(p.Variants) == 0 {
		price := p.Price
		if price == "" {
			price = catalog.DefaultPrice
		}
		return []shopify.VariantInput{{Price: catalog.NormalizePrice(price), SKU: p.SKU}}
	}
	out := make([]shopify.VariantInput, len(p.Variants))
	for i, v := range p.Variants {
		in := shopify.VariantInput{
			Price:   catalog.NormalizePrice(v.Price),
			SKU:     v.SKU,
			Barcode: v.Barcode,
		}
		if v.CompareAtPrice != nil {
			cmp := catalog.NormalizePrice(*v.CompareAtPrice)
			in.CompareAtPrice = &cmp
		}
		out[i] = in
	}
	return out
}

func importedRecord(shop, sessionID, productID string, p catalog.Product) *models.ImportedProduct {
	rec := &models.ImportedProduct{
		Shop:            shop,
		SessionID:       sessionID,
		ExternalID:      productID,
		Title:           p.Title,
		DescriptionHTML: p.DescriptionHTML,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Tags:            models.TagList(p.Tags),
		Price:           catalog.NormalizePrice(p.PrimaryPrice()),
		SKU:             p.PrimarySKU(),
		Status:          string(p.Status),
		MarkupApplied:   p.MarkupApplied,
		MarkupType:      p.MarkupType,
		MarkupValue:     p.MarkupValue,
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		rec.CompareAtPrice = v.CompareAtPrice
		rec.Barcode = v.Barcode
		rec.InventoryQuantity = v.InventoryQuantity
	}
	return rec
}
