package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"productimport/internal/api/middleware"
	"productimport/internal/importer"
	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/store"
)

type ImportedProducts interface {
	ListImported(ctx context.Context, shop, search string, page, limit int) ([]models.ImportedProduct, int64, error)
	GetImported(ctx context.Context, shop, id string) (*models.ImportedProduct, error)
}

type ImportedProductHandler struct {
	products ImportedProducts
	logger   *logger.Logger
}

func NewImportedProductHandler(products ImportedProducts, log *logger.Logger) *ImportedProductHandler {
	return &ImportedProductHandler{
		products: products,
		logger:   log,
	}
}

func (h *ImportedProductHandler) List(c *gin.Context) {
	shop := middleware.Shop(c)
	if shop == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": importer.ErrMissingShop.Error()})
		return
	}
	page, limit := pagination(c)

	products, total, err := h.products.ListImported(c.Request.Context(), shop, c.Query("search"), page, limit)
	if err != nil {
		h.logger.Error("Failed to list imported products: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": products,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

func (h *ImportedProductHandler) Get(c *gin.Context) {
	shop := middleware.Shop(c)
	if shop == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": importer.ErrMissingShop.Error()})
		return
	}

	product, err := h.products.GetImported(c.Request.Context(), shop, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		h.logger.Error("Failed to fetch imported product: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch product"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": product})
}
