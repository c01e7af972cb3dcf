package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"productimport/internal/logger"
	"productimport/internal/models"
	"productimport/internal/services/shopify"
)

const stateCookie = "shopify_oauth_state"

type OAuth interface {
	Configured() bool
	AuthURL(shop, redirectURI, state string) string
	Exchange(ctx context.Context, shop, code, redirectURI string) (*shopify.Token, error)
	VerifyCallback(query url.Values) bool
}

type ShopConnections interface {
	SaveShopConnection(ctx context.Context, conn *models.ShopConnection) error
}

// ShopifyHandler runs the app install flow that stores a shop's Admin API
// token for later imports.
type ShopifyHandler struct {
	oauth  OAuth
	conns  ShopConnections
	logger *logger.Logger
}

func NewShopifyHandler(oauth OAuth, conns ShopConnections, log *logger.Logger) *ShopifyHandler {
	return &ShopifyHandler{
		oauth:  oauth,
		conns:  conns,
		logger: log,
	}
}

// Install initiates the Shopify OAuth flow
func (h *ShopifyHandler) Install(c *gin.Context) {
	var request struct {
		ShopDomain  string `json:"shop_domain" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !h.oauth.Configured() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Shopify app credentials are not configured"})
		return
	}

	state, err := shopify.NewState()
	if err != nil {
		h.logger.Error("Failed to generate OAuth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authorization URL"})
		return
	}

	shop := shopify.ShopDomain(request.ShopDomain)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{
		"auth_url": h.oauth.AuthURL(shop, request.RedirectURI, state),
		"state":    state,
		"message":  "Redirect user to the auth_url to complete OAuth flow",
	})
}

// Callback handles the OAuth callback
func (h *ShopifyHandler) Callback(c *gin.Context) {
	query := c.Request.URL.Query()
	code, state, shop := query.Get("code"), query.Get("state"), shopify.ShopDomain(query.Get("shop"))
	if code == "" || state == "" || shop == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}
	if !h.oauth.VerifyCallback(query) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid callback signature"})
		return
	}
	if expected, err := c.Cookie(stateCookie); err != nil || expected != state {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "OAuth state mismatch"})
		return
	}

	token, err := h.oauth.Exchange(c.Request.Context(), shop, code, "")
	if err != nil {
		h.logger.Error("Failed to exchange code for token: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	conn := &models.ShopConnection{Shop: shop, AccessToken: token.AccessToken, Scope: token.Scope}
	if err := h.conns.SaveShopConnection(c.Request.Context(), conn); err != nil {
		h.logger.Error("Failed to save shop connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save shop connection"})
		return
	}

	c.SetCookie(stateCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.JSON(http.StatusOK, gin.H{
		"message": "Shopify store connected successfully",
		"shop":    shop,
		"scope":   token.Scope,
	})
}
