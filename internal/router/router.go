package router

import (
	"net/http"
	"time"

	"github.com/Ryuya-dot-com/SelfPacedReading/internal/config"
	"github.com/Ryuya-dot-com/SelfPacedReading/internal/handlers"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(429, "Too many requests. Try again later.")
}

// Setup wires the middleware stack and the experiment routes.
func Setup(log *zap.Logger, sessionHandler *handlers.SessionHandler) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(log))

	store := cookie.NewStore([]byte(config.Conf.Server.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400,
	})
	router.Use(sessions.Sessions("sprsession", store))

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	})

	if dir := config.Conf.Server.AssetsDir; dir != "" {
		router.Static("/assets", dir)
	}

	// Starting a session rebuilds the whole sequence; keep rapid-fire
	// identity submissions from hammering the allocator.
	rateLimitStore := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 30,
	})
	limiter := ratelimit.RateLimiter(rateLimitStore, &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	resultsHandler := handlers.NewResultsHandler(log, sessionHandler)

	api := router.Group("/api")
	{
		api.GET("/state", sessionHandler.State)
		api.POST("/session", limiter, sessionHandler.Create)
		api.POST("/session/proceed", sessionHandler.Proceed)
		api.POST("/session/begin-practice", sessionHandler.BeginPractice)
		api.POST("/session/advance", sessionHandler.Advance)
		api.POST("/session/answer", sessionHandler.Answer)
		api.POST("/session/abort", sessionHandler.Abort)
		api.GET("/session/export.csv", sessionHandler.ExportCSV)
		api.POST("/bank/reload", sessionHandler.ReloadBank)
	}

	router.GET("/results/chart", resultsHandler.ShowCharts)

	return router
}
