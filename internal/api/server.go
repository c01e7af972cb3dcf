package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"productimport/internal/api/handlers"
	"productimport/internal/api/middleware"
	"productimport/internal/config"
	"productimport/internal/logger"
	"productimport/internal/services/shopify"
	"productimport/internal/store"
)

// Deps are the services the HTTP layer calls into.
type Deps struct {
	Store    *store.Store
	Imports  handlers.ImportRunner
	Progress handlers.ProgressReader
	Jobs     handlers.JobPublisher
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORSAllowOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	importHandler := handlers.NewImportHandler(deps.Imports, deps.Progress, deps.Store, deps.Jobs, log)
	productHandler := handlers.NewImportedProductHandler(deps.Store, log)
	oauth := shopify.NewOAuthService(cfg.ShopifyClientID, cfg.ShopifyClientSecret, cfg.ShopifyScopes, log)
	shopifyHandler := handlers.NewShopifyHandler(oauth, deps.Store, log)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ShopIdentity(cfg.ShopifyClientSecret, deps.Store, log))
	{
		imports := v1.Group("/imports")
		{
			imports.POST("", importHandler.Create)
			imports.POST("/async", importHandler.CreateAsync)
			imports.POST("/preview", importHandler.Preview)
			imports.GET("", importHandler.List)
			imports.GET("/:id/progress", importHandler.Progress)
		}

		products := v1.Group("/imported-products")
		{
			products.GET("", productHandler.List)
			products.GET("/:id", productHandler.Get)
		}

		shopifyApp := v1.Group("/shopify")
		{
			shopifyApp.POST("/install", shopifyHandler.Install)
			shopifyApp.GET("/callback", shopifyHandler.Callback)
		}
	}

	return &Server{
		config: cfg,
		logger: log,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Synchronous imports hold the connection until every item is done.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on %s", addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
