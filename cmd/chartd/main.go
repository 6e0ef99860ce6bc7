package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"charting-systemv1/config"
	"charting-systemv1/internal/api"
	"charting-systemv1/internal/drawing"
	"charting-systemv1/internal/feed"
	"charting-systemv1/internal/gateway"
	"charting-systemv1/internal/history"
	"charting-systemv1/internal/indicator"
	"charting-systemv1/internal/logger"
	"charting-systemv1/internal/market"
	"charting-systemv1/internal/metrics"
	"charting-systemv1/internal/model"
	"charting-systemv1/internal/panel"
	"charting-systemv1/internal/panesync"
	"charting-systemv1/internal/store/rediscache"
)

const snapshotEvery = 30 * time.Second

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	configPath := flag.String("config", "", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[chartd] config: %v", err)
	}

	slogger := logger.Init("chartd", slog.LevelInfo)
	slogger.Info("starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.Infra.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Local drawing store (SQLite) ----
	os.MkdirAll(filepath.Dir(cfg.Infra.SQLitePath), 0o755)
	localStore, err := drawing.NewSQLiteStore(drawing.SQLiteConfig{DBPath: cfg.Infra.SQLitePath})
	if err != nil {
		log.Fatalf("[chartd] sqlite init failed: %v", err)
	}
	defer localStore.Close()

	// ---- Redis bar cache (optional) ----
	barCache, err := rediscache.New(rediscache.Config{
		Addr:     cfg.Infra.RedisAddr,
		Password: cfg.Infra.RedisPassword,
	})
	if err != nil {
		log.Printf("[chartd] WARNING: redis init failed: %v (continuing without redis)", err)
		barCache = nil
	}

	if barCache != nil {
		health.StartLivenessChecker(ctx, barCache.Client(), localStore.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, localStore.DB(), 10*time.Second)
	}

	g, ctx := errgroup.WithContext(ctx)

	// ---- Cross-panel sync bus ----
	bus := panesync.NewBus(64)
	bus.OnDrop = func(panelID string) {
		prom.SyncFanoutDrops.WithLabelValues(panelID).Inc()
	}
	if barCache != nil {
		rbus := panesync.NewRedisBus(bus, barCache.Client(), cfg.Chart.SyncGroup)
		g.Go(func() error {
			rbus.Run(ctx)
			return nil
		})
	}

	// ---- Live feed ----
	var liveFeed feed.Feed
	if cfg.Feed.URL != "" {
		wsFeed, err := feed.NewWSFeed(feed.WSConfig{
			URL:             cfg.Feed.URL,
			NativeIntervals: cfg.Feed.NativeIntervalList(),
			ClientCode:      cfg.Feed.ClientCode,
			Password:        cfg.Feed.Password,
			TOTPSecret:      cfg.Feed.TOTPSecret,
		})
		if err != nil {
			log.Fatalf("[chartd] feed init failed: %v", err)
		}
		wsFeed.OnConnect = func() {
			health.SetFeedConnected(true)
		}
		wsFeed.OnDisconnect = func() {
			prom.FeedReconnects.Inc()
			health.SetFeedConnected(false)
		}
		wsFeed.OnTick = func(ts int64) {
			health.SetLastTickTime(time.Unix(ts, 0))
		}
		g.Go(func() error { return wsFeed.Run(ctx) })
		liveFeed = wsFeed
	} else {
		log.Println("[chartd] no FEED_URL set, running simulated feed")
		simFeed := feed.NewSimFeed(feed.SimConfig{})
		g.Go(func() error { return simFeed.Run(ctx) })
		liveFeed = simFeed
		health.SetFeedConnected(true)
	}

	// ---- History, indicators, presets ----
	histClient := history.NewClient(cfg.History.URL, cfg.History.Token)
	registry := indicator.DefaultRegistry()

	presets, err := config.LoadPresets(cfg.Chart.PresetsPath)
	if err != nil {
		log.Fatalf("[chartd] presets: %v", err)
	}

	// ---- Gateway hub and panels ----
	hub := gateway.NewHub()
	configStore := gateway.NewConfigStore(hub, redisClient(barCache))

	instruments := cfg.Chart.ParseInstruments()
	if len(instruments) == 0 {
		log.Fatal("[chartd] no valid instruments configured")
	}

	controllers := make(map[string]*panel.Controller, len(instruments))
	renderers := make(map[string]api.BarsProvider, len(instruments))
	reconcilers := make([]*drawing.Reconciler, 0, len(instruments))

	var remoteDrawings drawing.RemoteStore
	if cfg.Drawing.URL != "" {
		remoteDrawings = drawing.NewAPIStore(cfg.Drawing.URL, cfg.Drawing.Token)
	}

	for i, key := range instruments {
		panelID := fmt.Sprintf("panel-%d", i)

		renderer := hub.AttachPanel(panelID)
		ctrl := panel.NewController(panel.Config{
			ID:       panelID,
			Renderer: renderer,
			Registry: registry,
			History:  histClient,
			Feed:     liveFeed,
			Bus:      bus,
			Metrics:  prom,
			Log:      slogger,
		})
		hub.BindControl(panelID, ctrl)

		controllers[panelID] = ctrl
		renderers[panelID] = renderer

		if err := ctrl.SetInstrument(ctx, key.Market, key.Symbol, cfg.Chart.Interval); err != nil {
			log.Printf("[chartd] WARNING: initial load of %s failed: %v", key, err)
		}

		// Restore persisted indicator configs, falling back to the
		// "default" preset when nothing was persisted.
		if !configStore.Load(ctx, panelID) {
			if def, ok := presets["default"]; ok {
				ctrl.SetIndicators(def)
			}
		}

		rec := drawing.NewReconciler(drawing.Config{
			Symbol:          key.Symbol,
			Local:           localStore,
			Remote:          remoteDrawings,
			OnRemoteFailure: prom.DrawingSyncFailures.Inc,
			Log:             slogger,
		})
		if err := rec.Load(ctx); err != nil {
			log.Printf("[chartd] WARNING: drawing load for %s failed: %v", key.Symbol, err)
		}
		reconcilers = append(reconcilers, rec)

		c := ctrl
		g.Go(func() error {
			c.Run(ctx)
			return nil
		})
	}

	// ---- HTTP API ----
	router := api.NewRouter(api.Config{
		Drawings:  localStore,
		Panels:    renderers,
		HandleWS:  hub.HandleWS,
		JWTSecret: cfg.Infra.JWTSecret,
	})
	apiSrv := &http.Server{Addr: cfg.Infra.APIAddr, Handler: router}
	g.Go(func() error {
		log.Printf("[chartd] api listening on %s", cfg.Infra.APIAddr)
		if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return apiSrv.Shutdown(shutCtx)
	})

	// ---- Daily history refresh before the Indian open ----
	sched := cron.New(cron.WithLocation(market.IST))
	sched.AddFunc("45 8 * * *", func() {
		for id, ctrl := range controllers {
			key, interval := ctrl.Instrument()
			if !market.IsTradingDay(key.Market, time.Now()) {
				log.Printf("[chartd] skipping refresh for %s: not a trading day", key)
				continue
			}
			if err := ctrl.SetInstrument(ctx, key.Market, key.Symbol, interval); err != nil {
				log.Printf("[chartd] daily refresh for %s failed: %v", id, err)
			}
		}
	})
	sched.Start()
	defer sched.Stop()

	// ---- Periodic bar snapshots to Redis ----
	if barCache != nil {
		g.Go(func() error {
			ticker := time.NewTicker(snapshotEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					for _, ctrl := range controllers {
						key, interval := ctrl.Instrument()
						if key == (model.InstrumentKey{}) {
							continue
						}
						if err := barCache.SaveBars(ctx, key, interval, ctrl.Bars()); err != nil {
							log.Printf("[chartd] bar snapshot for %s failed: %v", key, err)
						}
					}
				}
			}
		})
	}

	log.Printf("[chartd] running with %d panels", len(controllers))
	if err := g.Wait(); err != nil {
		log.Printf("[chartd] run group: %v", err)
	}

	// Flush pending drawing pushes before exit.
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, rec := range reconcilers {
		rec.SyncNow(flushCtx)
	}
	for _, ctrl := range controllers {
		ctrl.Teardown()
	}
	metricsSrv.Stop(flushCtx)
	if barCache != nil {
		barCache.Close()
	}
	log.Println("[chartd] bye")
}

func redisClient(c *rediscache.Cache) *goredis.Client {
	if c == nil {
		return nil
	}
	return c.Client()
}
