package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/koios/matrx-widgets/internal/cache"
	"github.com/koios/matrx-widgets/internal/config"
	"github.com/koios/matrx-widgets/internal/handlers"
	"github.com/koios/matrx-widgets/internal/media"
	"github.com/koios/matrx-widgets/internal/notify"
	"github.com/koios/matrx-widgets/internal/store"
	"github.com/koios/matrx-widgets/internal/widget"
	"github.com/koios/matrx-widgets/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewDatabase(cfg.Store.Path)
	if err != nil {
		logger.Fatal("Failed to open widget store", zap.Error(err), zap.String("path", cfg.Store.Path))
	}
	closers := []io.Closer{db}

	manifests, err := loadManifests(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to load module manifests", zap.Error(err))
	}

	backend, err := media.NewBackend(ctx, cfg.Library)
	if err != nil {
		logger.Fatal("Failed to initialize media library", zap.Error(err))
	}
	library := media.NewLibrary(backend, db, cfg.Library.BaseURL, logger)

	renderer, err := widget.NewRenderer()
	if err != nil {
		logger.Fatal("Failed to initialize renderer", zap.Error(err))
	}
	env := &widget.Environment{
		Assets:   library,
		Renderer: renderer,
		WidgetResourceURL: func(widgetID string) string {
			return cfg.Server.PublicURL + handlers.ResourcePath(widgetID)
		},
	}

	manifest, _ := manifests.Get(widget.WebPageType)
	webPage, err := widget.NewWebPage(env, manifest, logger)
	if err != nil {
		logger.Fatal("Failed to initialize webpage module", zap.Error(err))
	}
	registry := widget.NewRegistry(webPage)

	installModules(ctx, library, registry, cfg.Modules.AssetsPath, logger)

	resourceCache, cacheCloser, err := newResourceCache(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize resource cache", zap.Error(err), zap.String("backend", cfg.Cache.Backend))
	}
	if cacheCloser != nil {
		closers = append(closers, cacheCloser)
	}

	publisher, err := notify.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize notifier", zap.Error(err), zap.String("notifier", cfg.Notifier))
	}
	closers = append(closers, publisher)

	service := widget.NewService(registry, db, resourceCache, publisher,
		time.Duration(cfg.Cache.TTLSeconds)*time.Second, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(logger))

	if local, ok := backend.(*media.LocalBackend); ok && strings.HasPrefix(cfg.Library.BaseURL, "/") {
		router.Static(cfg.Library.BaseURL, local.Root())
	}

	handlers.NewWidgetHandler(service, db, manifests, logger).RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			cancel()
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Path),
		zap.String("library", cfg.Library.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("notifier", cfg.Notifier))

	// Wait for interrupt signal or server failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("Failed to close resource", zap.Error(err))
		}
	}

	logger.Info("Server shutdown complete")
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	return zapCfg.Build()
}

// loadManifests starts from the compiled-in manifests and lets a manifests directory override them
func loadManifests(cfg *config.Config, logger *zap.Logger) (*models.ManifestRegistry, error) {
	manifests := models.NewManifestRegistry(logger)

	embedded, err := widget.EmbeddedWebPageManifest()
	if err != nil {
		return nil, err
	}
	manifests.Add(embedded)

	if cfg.Modules.ManifestsPath != "" {
		if err := manifests.LoadDir(cfg.Modules.ManifestsPath); err != nil {
			return nil, err
		}
	}
	return manifests, nil
}

// installModules copies every module's system files and preview icon into the media library.
// Icons come from the module directory when its manifest was loaded from disk, otherwise from the binary.
func installModules(ctx context.Context, library *media.Library, registry *widget.Registry, assetsPath string, logger *zap.Logger) {
	if err := installBundledIcon(ctx, library, widget.FallbackPreviewIcon); err != nil {
		logger.Error("Failed to install fallback preview icon", zap.Error(err))
	}

	for _, m := range registry.Modules() {
		if err := library.Install(ctx, assetsPath, m.InstallFiles()); err != nil {
			logger.Error("Failed to install module files", zap.String("module", m.Type()), zap.Error(err))
		}

		manifest := m.Manifest()
		name := widget.PreviewIconName(manifest)
		if name == widget.FallbackPreviewIcon {
			continue
		}

		var err error
		if manifest.PreviewIconPath != "" {
			err = library.InstallFile(ctx, manifest.PreviewIconPath, name)
		} else {
			err = installBundledIcon(ctx, library, name)
		}
		if err != nil {
			logger.Error("Failed to install preview icon",
				zap.String("module", m.Type()),
				zap.String("icon", name),
				zap.Error(err))
		}
	}
}

func installBundledIcon(ctx context.Context, library *media.Library, name string) error {
	f, err := widget.OpenBundledIcon(name)
	if err != nil {
		return fmt.Errorf("no bundled icon %s: %w", name, err)
	}
	defer f.Close()
	return library.InstallReader(ctx, name, f)
}

func newResourceCache(ctx context.Context, cfg *config.Config) (widget.ResourceCache, io.Closer, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemoryCache(), nil, nil
	case "redis":
		redisCache := cache.NewRedisCache(&cfg.Redis)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			redisCache.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return redisCache, redisCache, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
