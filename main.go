package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"maildash/config"
	"maildash/handlers"
	"maildash/handlers/api"
	"maildash/handlers/web"
	"maildash/middleware"
	"maildash/remote"
	"maildash/session"
	"maildash/storage"
	"maildash/store"
	"maildash/utils"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/template/html/v2"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// newEngine builds the view engine with the helpers the templates use
func newEngine(dir string) *html.Engine {
	engine := html.New(dir, ".html")

	engine.AddFunc("split", strings.Split)
	engine.AddFunc("join", strings.Join)
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("upper", strings.ToUpper)
	engine.AddFunc("trim", strings.TrimSpace)
	engine.AddFunc("hasPrefix", strings.HasPrefix)

	// i18n template functions, called with the request's .Localizer
	engine.AddFunc("t", func(localizer *i18n.Localizer, messageID string) string {
		return utils.T(localizer, messageID)
	})
	engine.AddFunc("tWithData", func(localizer *i18n.Localizer, messageID string, data map[string]interface{}) string {
		return utils.TWithData(localizer, messageID, data)
	})
	engine.AddFunc("tPlural", func(localizer *i18n.Localizer, messageID string, count int) string {
		return utils.TPlural(localizer, messageID, count)
	})

	engine.AddFunc("formatDate", func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 02, 2006 15:04")
	})
	engine.AddFunc("formatSize", func(size int) string {
		const unit = 1024
		if size < unit {
			return fmt.Sprintf("%d B", size)
		}
		div, exp := int64(unit), 0
		for n := int64(size) / unit; n >= unit; n /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
	})
	engine.AddFunc("truncate", func(s string, n int) string {
		r := []rune(s)
		if len(r) <= n {
			return s
		}
		return string(r[:n]) + "…"
	})
	engine.AddFunc("dict", func(kv ...interface{}) map[string]interface{} {
		m := make(map[string]interface{}, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			if k, ok := kv[i].(string); ok {
				m[k] = kv[i+1]
			}
		}
		return m
	})

	return engine
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML configuration file")
	flag.Parse()

	utils.Log.Info("Initializing maildash...")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	log := utils.Log
	log.SetLevel(utils.ParseLogLevel(cfg.Log.Level))

	db, err := storage.InitDB(cfg.Storage.Folder)
	if err != nil {
		log.Error("Failed to open storage: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	httpStorage := storage.NewBoltStorage(db)
	sessions := fibersession.New(fibersession.Config{
		Storage:        httpStorage,
		Expiration:     cfg.JWT.TTL(),
		CookieSecure:   cfg.Server.SecureCookies,
		CookieHTTPOnly: true,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
	})

	client := remote.New(cfg.API.BaseURL, cfg.API.Timeout(),
		remote.WithToken(cfg.API.Token),
		remote.WithLogger(log.WithField("component", "remote")),
	)

	notify := api.NewNotificationHandler(log.WithField("component", "notifications"))
	registry := store.NewRegistry(client, log,
		store.WithNotifier(notify),
		store.WithSearchK(cfg.Search.DefaultK),
	)
	manager := session.NewManager(client, storage.NewSessionStorage(db), registry, cfg.JWT.Secret, cfg.JWT.TTL(), log)
	if cfg.JWT.Secret == "" {
		log.Warn("jwt.secret is empty; bearer tokens are disabled")
	}

	translator := utils.NewTranslator(cfg.Server.Locales, log)

	engine := newEngine(cfg.Server.Templates)
	engine.Reload(cfg.Log.Level == "debug")

	app := fiber.New(fiber.Config{
		Views:        engine,
		ViewsLayout:  "layouts/main",
		ErrorHandler: handlers.ErrorHandler(log),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	done := make(chan struct{})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New(compress.Config{
		// streamed notifications must not be buffered by the compressor
		Next: func(c *fiber.Ctx) bool {
			return strings.HasSuffix(c.Path(), "/notifications")
		},
	}))
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; connect-src 'self'",
	}))
	if headers := cfg.GetSecurityHeaders(); len(headers) > 0 {
		app.Use(func(c *fiber.Ctx) error {
			for k, v := range headers {
				c.Set(k, v)
			}
			return c.Next()
		})
	}

	app.Use(middleware.Locale(translator))
	app.Use(middleware.RateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window(), done))
	app.Use(middleware.CSRFProtection(middleware.CSRFConfig{
		Secure:  cfg.Server.SecureCookies,
		Storage: httpStorage,
	}))

	app.Static("/assets", cfg.Server.Assets, fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	pages := web.NewHandlers(sessions, manager, log)
	pages.RegisterPublic(app)

	apiHandlers := api.NewHandlers(manager, translator, notify, log)
	apiHandlers.Register(app.Group("/api", middleware.RequireAuth(middleware.AuthConfig{
		Sessions: sessions,
		Resolver: manager,
	})))
	apiHandlers.RegisterWebSocket(app.Group("/ws", middleware.RequireAuth(middleware.AuthConfig{
		Sessions: sessions,
		Resolver: manager,
	})))

	pages.Register(app.Group("", middleware.RequireAuth(middleware.AuthConfig{
		Sessions:   sessions,
		Resolver:   manager,
		RedirectTo: "/login",
	})))

	// 404 Handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, _ := c.Locals("localizer").(*i18n.Localizer)
		return utils.NotFoundError(utils.T(localizer, "error_404"), nil)
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		log.Info("Shutting down...")
		close(done)
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("Shutdown error: %v", err)
		}
	}()

	log.Info("Starting server on port %d...", cfg.Server.Port)
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		log.Error("Error starting server: %v", err)
	}
}
