package http

import (
	"os"
	"time"

	"github.com/calebross/markethub/internal/cache"
	"github.com/calebross/markethub/internal/config"
	"github.com/calebross/markethub/internal/datastore"
	"github.com/calebross/markethub/internal/http/handlers"
	"github.com/calebross/markethub/internal/http/middlewares"
	"github.com/calebross/markethub/internal/identity"
	"github.com/calebross/markethub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20 // 1 MiB

func NewRouter(
	cfg config.Config,
	provider identity.Provider,
	store datastore.Store,
	respCache cache.Cache,
	prom *observability.Prom,
	ping func() error,
) *gin.Engine {
	if os.Getenv("APP_ENV") != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("markethub"))

	if prom != nil {
		r.Use(prom.GinHandleMiddleware())
	}

	// health + metrics
	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// wire up handlers
	usersHandler := handlers.NewUsersHandler(provider, store, prom)
	productsHandler := handlers.NewProductsHandler(store, respCache, prom)

	publicLimiter := middlewares.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)
	userLimiter := middlewares.NewRateLimiter(cfg.RateLimitPerMin, time.Minute)

	r.POST("/register", publicLimiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.Register)
	r.POST("/login", publicLimiter.RateLimiterMiddleware(middlewares.KeyByIP), usersHandler.Login)

	// everything below the gate requires a verified token
	gate := middlewares.NewAuthMiddleware(provider)

	authed := r.Group("/")
	authed.Use(gate.RequireAuth())
	authed.Use(userLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))

	authed.POST("/upload_product", productsHandler.Upload)
	authed.GET("/user_products", productsHandler.UserProducts)
	authed.DELETE("/delete_product/:product_id", productsHandler.Delete)
	authed.GET("/product_info/:product_id", productsHandler.Info)
	authed.GET("/all_products", productsHandler.All)
	authed.PUT("/update_product/:product_id", productsHandler.Update)
	authed.GET("/search_products", productsHandler.Search)
	authed.GET("/products_by_category/:category_name", productsHandler.ByCategory)

	return r
}
