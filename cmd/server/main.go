package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/csrf"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smartsoil/smartsoil/internal/config"
	"github.com/smartsoil/smartsoil/internal/controllers"
	"github.com/smartsoil/smartsoil/internal/crypto"
	"github.com/smartsoil/smartsoil/internal/i18n"
	"github.com/smartsoil/smartsoil/internal/logging"
	"github.com/smartsoil/smartsoil/internal/metrics"
	"github.com/smartsoil/smartsoil/internal/middleware"
	"github.com/smartsoil/smartsoil/internal/services"
	"github.com/smartsoil/smartsoil/internal/state"
	"github.com/smartsoil/smartsoil/internal/views"
	"github.com/smartsoil/smartsoil/templates"
)

const sweepInterval = 5 * time.Minute

var rootCmd = &cobra.Command{
	Use:   "smartsoil",
	Short: "SmartSoil agronomy advisor",
	Long: `SmartSoil serves the agronomy advisor web app.

Run without arguments to start the HTTP server. Configuration is read from
the environment and an optional .env file.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg := config.MustLoad()

	logger, err := logging.New(cfg.Server.Environment, cfg.App.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", zap.Error(err))
		return err
	}
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Setup the state store ---------------
	var store state.Store
	if cfg.Store.RedisURL != "" {
		logger.Info("connecting to redis")
		client, err := state.ConnectRedis(ctx, cfg.Store.RedisURL, 5)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer client.Close()
		redisStore := state.NewRedisStore(client, cfg.Security.SessionDuration)
		if cfg.Store.EncryptionKey != "" {
			sealer, err := crypto.NewSealerFromBase64(cfg.Store.EncryptionKey)
			if err != nil {
				return fmt.Errorf("STATE_ENCRYPTION_KEY: %w", err)
			}
			redisStore.WithSealer(sealer)
		}
		store = redisStore
		logger.Info("redis connected", zap.Bool("sealed", cfg.Store.EncryptionKey != ""))
	} else {
		mem := state.NewMemoryStore(cfg.Security.SessionDuration)
		g.Go(func() error {
			mem.RunSweeper(ctx, sweepInterval)
			return nil
		})
		store = mem
		logger.Info("using in-memory session store")
	}

	// Setup Services ---------------
	generator := services.NewGeminiGenerator(services.GeminiConfig{
		APIKey:          cfg.AI.GeminiAPIKey,
		Model:           cfg.AI.GeminiModel,
		BaseURL:         cfg.AI.GeminiBaseURL,
		BreakerFailures: cfg.AI.BreakerFailures,
		BreakerCooldown: cfg.AI.BreakerCooldown,
	}, logger)
	if cfg.AI.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set; analyses will fail until it is provided")
	}
	advisor := services.NewAdvisor(generator, logger)
	collector := metrics.NewCollector()

	// Setup Templates ---------------
	views.TemplateFS = templates.FS
	homeTpl, err := views.ParseFS("pages/home.gohtml")
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	// Setup Controllers ---------------
	staticC := controllers.NewStaticController(
		controllers.StaticTemplates{Home: homeTpl},
		store,
		i18n.Default(),
		cfg.AI.RequestTimeout,
		cfg.IsDevelopment(),
		logger,
	)
	analyzeC := controllers.NewAnalyzeController(store, advisor, collector, cfg.AI.RequestTimeout, logger)
	sessionC := controllers.NewSessionController(store, logger)
	apiC := controllers.NewAPIController(advisor, collector, cfg.AI.RequestTimeout, cfg.App.DefaultLanguage, logger)

	// Setup Middleware ---------------
	sessionMw := middleware.NewSessionMiddleware(store, middleware.SessionOptions{
		CookieName:      cfg.Security.SessionCookieName,
		Duration:        cfg.Security.SessionDuration,
		SecureCookies:   cfg.Security.SecureCookies,
		DefaultLanguage: cfg.App.DefaultLanguage,
	}, logger)

	csrfMw := csrf.Protect(
		[]byte(cfg.Security.CSRFSecret),
		csrf.Secure(cfg.Security.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(cfg.Security.CSRFTrustedOrigins),
	)

	corsMw := cors.Handler(cors.Options{
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	// Setup router and routes ---------------
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)
	r.Use(collector.Middleware)

	r.Get("/health", controllers.HealthCheck)
	r.Method(http.MethodGet, "/metrics", collector.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(corsMw)
		r.Post("/analyses", apiC.PostAnalysis)
	})

	// ---- Page Routes ----
	r.Group(func(r chi.Router) {
		if !cfg.Security.SecureCookies {
			r.Use(plaintextHTTP)
		}
		r.Use(csrfMw)
		r.Use(sessionMw.SetSession)

		r.Get("/", staticC.GetHome)
		r.Post("/lang", sessionC.PostLanguage)
		r.Post("/analyze", analyzeC.PostAnalyze)
		r.Post("/schedule/tab", sessionC.PostTab)
		r.Post("/schedule/weeks/{index}/toggle", sessionC.PostToggleWeek)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start the Server ---------------
	g.Go(func() error {
		logger.Info("starting server",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.Server.Environment),
			zap.String("base_url", cfg.Server.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// plaintextHTTP tells the CSRF middleware that the request arrived over plain
// HTTP, which relaxes its Referer check for local development.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
