package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spice-taste/config"
	"spice-taste/core"
	"spice-taste/handlers/api/blogs"
	"spice-taste/handlers/api/comments"
	"spice-taste/handlers/api/messages"
	"spice-taste/handlers/api/spices"
	"spice-taste/handlers/api/users"
	"spice-taste/handlers/auth"
	appMiddleware "spice-taste/middleware"
	"spice-taste/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const shutdownTimeout = 10 * time.Second

func handleRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "Spice-Taste")
	}
}

func setupRouter(store core.DocumentStore, tokens *auth.TokenService, metrics *appMiddleware.Metrics, gatherer prometheus.Gatherer, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Handler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Get("/", handleRoot())
	r.Method(http.MethodGet, "/metrics", appMiddleware.MetricsHandler(gatherer))

	r.Route("/user", func(r chi.Router) {
		// Only the user list requires a verified caller.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.AuthJWT(tokens))
			r.Get("/", users.HandleList(store))
		})
		r.Put("/{email}", users.HandleLogin(store, tokens))
	})

	r.Route("/spice", func(r chi.Router) {
		r.Get("/", spices.HandleList(store))
		r.Post("/", spices.HandleCreate(store))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", spices.HandleGet(store))
			r.Put("/", spices.HandleUpdateQuantity(store, cfg.QuantityUpsert))
			r.Delete("/", spices.HandleDelete(store))
		})
	})
	r.Get("/spiceCount", spices.HandleCount(store))
	r.Get("/myitem", spices.HandleListByOwner(store))

	r.Route("/message", func(r chi.Router) {
		r.Get("/", messages.HandleList(store))
		r.Post("/", messages.HandleCreate(store))
	})

	r.Route("/blogs", func(r chi.Router) {
		r.Get("/", blogs.HandleList(store))
		r.Post("/", blogs.HandleCreate(store))
	})

	r.Route("/comment", func(r chi.Router) {
		r.Post("/", comments.HandleCreate(store))
		r.Get("/{blogId}", comments.HandleListByBlog(store))
	})

	return r
}

func waitForShutdown(srv *http.Server, store core.DocumentStore) {
	signalC := make(chan os.Signal, 1)
	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	s := <-signalC
	logrus.WithField("signal", s.String()).Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Failed to shut down server gracefully")
	}
	if err := store.Close(ctx); err != nil {
		logrus.WithError(err).Error("Failed to close store")
	}
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	listenAddress := flag.String("listen", cfg.ListenAddr, "The address to listen on.")
	logLevel := flag.String("loglevel", cfg.LogLevel, "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	store, err := stores.GetStore(context.Background(), cfg.Storage)
	if err != nil {
		logrus.WithField("type", cfg.Storage.Type).Fatalf("Failed to open store: %v", err)
	}

	tokens := auth.NewTokenService([]byte(cfg.AccessTokenSecret), cfg.TokenTTL)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := appMiddleware.NewMetrics(reg)

	srv := &http.Server{
		Addr:              *listenAddress,
		Handler:           setupRouter(store, tokens, metrics, reg, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(srv, store)
}
