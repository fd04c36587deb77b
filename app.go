package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"carouselbot/pkg/cache"
	"carouselbot/pkg/captions"
	"carouselbot/pkg/carousel"
	"carouselbot/pkg/config"
	"carouselbot/pkg/drive"
	"carouselbot/pkg/history"
	"carouselbot/pkg/imagekit"
	"carouselbot/pkg/notify"
	"carouselbot/pkg/publisher"
	"carouselbot/pkg/retry"
	"carouselbot/pkg/surreal"
)

// app is the fully wired pipeline.
type app struct {
	cfg     *config.Config
	secrets *config.Secrets
	logger  *zap.Logger

	source    *drive.Source
	publisher *publisher.Client
	runner    *carousel.Runner
	notifiers carousel.NotifierFunc

	closers []func()
}

func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return zc.Build()
}

func retryPolicy(cfg *config.Config) retry.Policy {
	initial, maxDelay := cfg.RetryDelays()
	return retry.Policy{Attempts: cfg.Retry.MaxRetries, Initial: initial, Max: maxDelay}
}

func fontResolver(cfg *config.Config, logger *zap.Logger) imagekit.FontResolver {
	if cfg.Image.EmbeddedFont {
		return &imagekit.EmbeddedResolver{}
	}
	paths := cfg.Image.FontPaths
	if len(paths) == 0 {
		paths = imagekit.DefaultFontPaths
	}
	r := imagekit.NewPathResolver(paths...)
	if r.Degraded() {
		logger.Warn("no scalable font found, overlays use the bitmap fallback")
	} else {
		logger.Debug("using font", zap.String("path", r.Path()))
	}
	return r
}

func newPublisher(cfg *config.Config, apiKey string, logger *zap.Logger) *publisher.Client {
	return publisher.New(apiKey, publisher.Options{
		BaseURL:       cfg.Publisher.BaseURL,
		Platform:      cfg.Publisher.Platform,
		Timeout:       time.Duration(cfg.Publisher.TimeoutSeconds) * time.Second,
		Retry:         retryPolicy(cfg),
		Limiter:       publisher.NewLimiter(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
		Geometry:      cfg.Geometry(),
		FallbackTitle: cfg.Content.FallbackTitle,
		Logger:        logger,
	})
}

func newListingCache(cfg *config.Config, secrets *config.Secrets, logger *zap.Logger) (cache.ListingCache, func()) {
	if cfg.Cache.Backend == "redis" {
		if secrets.RedisURL == "" {
			logger.Warn("cache backend is redis but REDIS_URL is unset, using memory")
		} else {
			rc, err := cache.NewRedisCache(secrets.RedisURL, cfg.Cache.Prefix, cfg.CacheTTL())
			if err == nil {
				logger.Info("using redis listing cache")
				return rc, func() { _ = rc.Close() }
			}
			logger.Warn("redis unavailable, using memory cache", zap.Error(err))
		}
	}
	return cache.NewMemoryCache(cfg.CacheTTL()), func() {}
}

func newHistory(ctx context.Context, secrets *config.Secrets, logger *zap.Logger) (history.Store, func()) {
	if !secrets.HasSurreal() {
		return history.Nop, func() {}
	}
	client, err := surreal.NewClient(ctx, surreal.Settings{
		Host:      secrets.SurrealHost,
		User:      secrets.SurrealUser,
		Pass:      secrets.SurrealPass,
		Namespace: secrets.SurrealNamespace,
		Database:  secrets.SurrealDatabase,
	})
	if err != nil {
		logger.Warn("history disabled: failed to connect to SurrealDB", zap.Error(err))
		return history.Nop, func() {}
	}
	store, err := history.NewSurrealStore(ctx, client)
	if err != nil {
		logger.Warn("history disabled: failed to init schema", zap.Error(err))
		client.Close()
		return history.Nop, func() {}
	}
	logger.Info("post history enabled")
	return store, client.Close
}

func newApp(ctx context.Context, cfg *config.Config, secrets *config.Secrets, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, secrets: secrets, logger: logger}

	listings, closeCache := newListingCache(cfg, secrets, logger)
	a.closers = append(a.closers, closeCache)

	policy := retryPolicy(cfg)
	source, err := drive.New(ctx, secrets.GoogleServiceAccountJSON, cfg.Folders, listings, drive.Options{
		Retry:  policy,
		Logger: logger.Named("drive"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create Drive client: %w", err)
	}
	a.source = source

	var model captions.Model
	if secrets.HasOpenAI() {
		model = captions.NewOpenAIModel(secrets.OpenAIAPIKey, secrets.OpenAIBaseURL, cfg.Content.Model)
	}
	gen := captions.New(captions.Options{
		Hooks:        cfg.Content.Hooks,
		Hashtags:     cfg.Content.Hashtags,
		CTATexts:     cfg.Content.CTATexts,
		HashtagCount: cfg.Content.HashtagCount,
		Prompt:       captions.LoadPrompt(cfg.Content.PromptPath),
		Model:        model,
		Logger:       logger.Named("captions"),
	})

	renderer := imagekit.NewRenderer(fontResolver(cfg, logger), cfg.Image.Quality, logger.Named("imagekit"))
	builder := carousel.NewBuilder(source, renderer, imagekit.NewNormalizer(cfg.Image.Quality), carousel.BuilderOptions{
		Geometry:    cfg.Geometry(),
		Screenshots: cfg.Image.Screenshots,
		HookSpec:    cfg.Text.Hook.OverlaySpec(),
		CTASpec:     cfg.Text.CTA.OverlaySpec(),
		Logger:      logger.Named("builder"),
	})

	a.publisher = newPublisher(cfg, secrets.UploadPostAPIKey, logger.Named("publisher"))

	store, closeHistory := newHistory(ctx, secrets, logger)
	a.closers = append(a.closers, closeHistory)

	a.notifiers = func(url string) notify.Notifier { return notify.ForURL(url, logger.Named("notify")) }
	a.runner = carousel.NewRunner(builder, gen, a.publisher, carousel.RunnerOptions{
		Accounts:    cfg.Accounts,
		Platform:    cfg.Publisher.Platform,
		RecentHooks: cfg.Content.RecentHooks,
		Notifiers:   a.notifiers,
		History:     store,
		Logger:      logger,
	})
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// primaryNotifier posts lifecycle messages to the first account's webhook.
func (a *app) primaryNotifier() notify.Notifier {
	if len(a.cfg.Accounts) == 0 {
		return notify.Nop
	}
	return a.notifiers(a.cfg.Accounts[0].WebhookURL)
}
