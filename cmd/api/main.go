package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collections-dialer/internal/audit"
	"collections-dialer/internal/auth"
	"collections-dialer/internal/callbacks"
	"collections-dialer/internal/checkpoint"
	"collections-dialer/internal/config"
	"collections-dialer/internal/customers"
	"collections-dialer/internal/dialer"
	"collections-dialer/internal/eventbridge"
	"collections-dialer/internal/heuristics"
	"collections-dialer/internal/httpapi"
	"collections-dialer/internal/notify"
	"collections-dialer/internal/phone"
	"collections-dialer/internal/publisher"
	"collections-dialer/internal/reporting"
	"collections-dialer/internal/telephony"
	"collections-dialer/internal/wrapup"
	"collections-dialer/pkg/logger"
	"collections-dialer/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env, cfg.App.LogLevel)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var db *sql.DB
	if cfg.DB.Host != "" {
		db, err = utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{MaxOpenConns: cfg.DB.MaxOpenConns})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		if cfg.DB.AutoMigrate {
			if err := utils.EnsureSchema(rootCtx, db, wrapup.Schema, audit.Schema); err != nil {
				log.Error("schema migration failed", "err", err)
				os.Exit(1)
			}
			log.Info("schema ensured")
		}
	} else {
		log.Warn("DB_HOST not set, using in-memory stores")
	}

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
	} else {
		log.Warn("REDIS_HOST not set, checkpoints are process-local")
	}

	st := openStores(db, rdb, cfg)

	launcher, err := telephony.NewLauncher(telephony.LauncherConfig{
		Mode:    cfg.Dialer.LauncherMode,
		Scheme:  cfg.Dialer.DialScheme,
		Command: cfg.Dialer.OpenCommand,
		Args:    cfg.Dialer.OpenArgs,
	}, log.With("component", "launcher"))
	if err != nil {
		log.Error("launcher init failed", "err", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(st.audit).WithLogger(log.With("component", "audit"))
	observers := []func(dialer.Event){observeMetrics, auditSvc.Observe}

	var (
		bridge    *eventbridge.Bridge
		notifyPub *notify.Publisher
		mqttPub   publisher.Publisher
	)
	if cfg.MQTT.Enabled() {
		mqttPub, err = publisher.NewMQTTPublisher(publisher.MQTTOptions{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
		}, log.With("component", "mqtt"))
		if err != nil {
			log.Error("mqtt init failed", "err", err)
			os.Exit(1)
		}
		defer mqttPub.Close()

		bridge = eventbridge.New(mqttPub, cfg.MQTT.TopicPrefix, 0, log.With("component", "eventbridge"))
		bridge.OnDrop(func() { utils.EventsDropped.WithLabelValues("eventbridge").Inc() })
		observers = append(observers, bridge.Observe)
		notifyPub = notify.NewPublisher(mqttPub, cfg.MQTT.TopicPrefix, 0, log.With("component", "notify"))
	}

	retry := wrapup.DefaultRetryPolicy()
	if cfg.WrapUp.RetryAttempts > 0 {
		retry.MaxAttempts = cfg.WrapUp.RetryAttempts
	}

	regCfg := dialer.RegistryConfig{
		Controller: dialer.Config{
			LookupTimeout: cfg.Dialer.LookupTimeout,
			LaunchTimeout: cfg.Dialer.LaunchTimeout,
		},
		Heuristics: heuristics.Config{
			AnswerWindowMin:  cfg.Dialer.AnswerWindowMin,
			AnswerWindowMax:  cfg.Dialer.AnswerWindowMax,
			MaxCallDuration:  cfg.Dialer.MaxCallDuration,
			MinPlausibleCall: cfg.Dialer.MinPlausibleCall,
		},
		WrapUp: wrapup.Config{
			Timeout: cfg.WrapUp.PersistTimeout,
			Retry:   retry,
			OnPersistFailure: func(error) {
				utils.WrapUpPersistFailures.Inc()
			},
		},
		FeedSize:    cfg.Dialer.FeedSize,
		Launcher:    launcher,
		Customers:   st.customers,
		Checkpoints: st.checkpoints,
		WrapUpStore: st.wrapups,
		Normalizer:  phone.NewNormalizer(cfg.Dialer.CountryCode, cfg.Dialer.NationalNumberLen),
		HeuristicOptions: []heuristics.Option{
			heuristics.WithFireHook(func(k heuristics.Kind) {
				utils.HeuristicVerdictsTotal.WithLabelValues(string(k)).Inc()
			}),
		},
		Observers: observers,
		Logger:    log.With("component", "dialer"),
	}
	if notifyPub != nil {
		regCfg.Notifier = notifyPub.For
	}
	desks := dialer.NewRegistry(regCfg)
	defer desks.Close()

	reminder := callbacks.NewReminder(callbacks.Config{
		Schedule:  cfg.Callbacks.Schedule,
		Lookahead: cfg.Callbacks.Lookahead,
	}, st.callbacks, st.dedupe, func(_ context.Context, agentID string) notify.Port {
		if d, ok := desks.Lookup(agentID); ok {
			return d.Notifier
		}
		if notifyPub != nil {
			return notifyPub.For(agentID)
		}
		return nil
	}, log.With("component", "callbacks"))

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:      cfg,
		authMW:   auth.RequireAccessToken(authManager),
		handlers: httpapi.Handlers{
			Auth:    authManager,
			Desks:   desks,
			Reports: reporting.NewService(reporting.NewDeskRepo(desks)),
			Audit:   auditSvc,
		},
		webhook: telephony.InboundWebhookHandler{Desks: desks, Token: cfg.Dialer.WebhookToken},
		db:      db,
		rdb:     rdb,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return auditSvc.Run(gctx) })
	g.Go(func() error { return desks.RunWrapUpRetries(gctx, cfg.WrapUp.RetryInterval) })
	if bridge != nil {
		g.Go(func() error { return bridge.Run(gctx) })
	}
	if notifyPub != nil {
		g.Go(func() error { return notifyPub.Run(gctx) })
	}
	if !cfg.Callbacks.Disabled {
		g.Go(func() error { return reminder.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", "err", err)
		desks.Close()
		os.Exit(1)
	}
}

type stores struct {
	wrapups     wrapup.Store
	callbacks   wrapup.CallbackSource
	customers   dialer.CustomerLookup
	checkpoints checkpoint.Store
	audit       audit.Repository
	dedupe      callbacks.Dedupe
}

// openStores picks durable stores when their backends are configured and
// in-memory ones otherwise.
func openStores(db *sql.DB, rdb *redis.Client, cfg config.Config) stores {
	var st stores
	if db != nil {
		w := wrapup.NewPostgresStore(db)
		st.wrapups, st.callbacks = w, w
		st.customers = customers.NewPostgresDirectory(db)
		st.audit = audit.NewPostgresRepo(db)
	} else {
		w := wrapup.NewMemoryStore()
		st.wrapups, st.callbacks = w, w
		st.customers = customers.NewMemoryDirectory(phone.NewNormalizer(cfg.Dialer.CountryCode, cfg.Dialer.NationalNumberLen))
		st.audit = audit.NewMemoryRepo()
	}
	if rdb != nil {
		st.checkpoints = checkpoint.NewRedisStore(rdb, cfg.Checkpoint.KeyPrefix, cfg.Checkpoint.TTL)
		st.dedupe = callbacks.NewRedisDedupe(rdb, cfg.Checkpoint.KeyPrefix)
	} else {
		st.checkpoints = checkpoint.NewMemoryStore()
		st.dedupe = callbacks.NewMemoryDedupe(nil)
	}
	return st
}
