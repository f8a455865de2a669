package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/natusdeed/fashion-site-sub000/internal/catalog"
	"github.com/natusdeed/fashion-site-sub000/internal/session"
	"github.com/natusdeed/fashion-site-sub000/pkg/health"
	"github.com/natusdeed/fashion-site-sub000/pkg/middleware"
)

// productCacheSeconds is how long browsers may cache catalog lookups.
const productCacheSeconds = 300

// RouterConfig holds the router's collaborators.
type RouterConfig struct {
	Service      string
	Sessions     *session.Manager
	Catalog      catalog.Catalog
	Health       *health.Handler
	ShareLimiter *middleware.RateLimiter
	CORS         middleware.CORSConfig
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.Service))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	cartHandler := NewCartHandler(cfg.Catalog, logger)
	wishlistHandler := NewWishlistHandler(cfg.Catalog, logger)
	productHandler := NewProductHandler(cfg.Catalog, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(productCacheSeconds))
			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/{ref}", productHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)
			r.Use(Sessions(cfg.Sessions, logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Delete("/", cartHandler.ClearCart)
				r.Put("/drawer", cartHandler.SetDrawer)

				r.Post("/items", cartHandler.AddItem)
				r.Put("/items/{lineId}", cartHandler.UpdateQuantity)
				r.Delete("/items/{lineId}", cartHandler.RemoveItem)
			})

			r.Route("/wishlist", func(r chi.Router) {
				r.Get("/", wishlistHandler.ListItems)
				r.Delete("/", wishlistHandler.Clear)

				r.Post("/items", wishlistHandler.AddItem)
				r.Get("/items/{productId}", wishlistHandler.GetItem)
				r.Delete("/items/{productId}", wishlistHandler.RemoveItem)

				share := http.Handler(http.HandlerFunc(wishlistHandler.Share))
				if cfg.ShareLimiter != nil {
					share = cfg.ShareLimiter.Handler(share)
				}
				r.Method(http.MethodPost, "/share", share)
			})
		})
	})

	return r
}
