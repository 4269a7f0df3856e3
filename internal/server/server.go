// Package server wires the daemon together: store, repository, oracle,
// notifier, agent and scheduler, plus the HTTP API the UI and the CLI
// talk to.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/heraldhq/herald/config"
	"github.com/heraldhq/herald/internal/agent"
	"github.com/heraldhq/herald/internal/gate"
	"github.com/heraldhq/herald/internal/notify"
	"github.com/heraldhq/herald/internal/oracle"
	"github.com/heraldhq/herald/internal/scheduler"
	"github.com/heraldhq/herald/internal/state"
	"github.com/heraldhq/herald/internal/store"
	"github.com/heraldhq/herald/internal/telemetry"
)

// HTTPError is the JSON shape every error response carries.
type HTTPError struct {
	Error string `json:"error"`
}

// Run assembles the daemon from cfg and serves until SIGINT/SIGTERM.
func Run(cfg *config.Config) error {
	ctx := context.Background()
	logger := log.New(log.Writer(), "[SERVER] ", log.LstdFlags)

	loc, err := cfg.General.Location()
	if err != nil {
		return fmt.Errorf("resolve timezone: %w", err)
	}

	var st store.Store
	switch cfg.Store.Driver {
	case "redis":
		rdb, err := store.NewRedis(ctx, store.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
			Timeout:  cfg.Store.Redis.Timeout,
		})
		if err != nil {
			return fmt.Errorf("redis connection failed (%s): %w", cfg.Store.Redis.Addr, err)
		}
		defer rdb.Close()
		st = rdb
	default:
		logger.Printf("using in-memory store, state does not survive a restart")
		st = store.NewMemory()
	}

	repo := state.NewRepository(st)
	if err := repo.Init(ctx); err != nil {
		return fmt.Errorf("initialize store defaults: %w", err)
	}

	var tel *telemetry.Telemetry
	if cfg.Telemetry.Enabled {
		tel = telemetry.New()
	}

	orc := oracle.New(oracle.Options{
		BaseURL:     cfg.Oracle.BaseURL,
		APIKey:      cfg.Oracle.APIKey,
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.Oracle.Timeout,
	}, repo.Memory, tel)

	var sender notify.Sender
	if cfg.Notifier.Telegram.Configured() {
		tg, err := notify.NewTelegramSender(notify.TelegramOptions{
			Token:  cfg.Notifier.Telegram.Token,
			ChatID: cfg.Notifier.Telegram.ChatID,
		})
		if err != nil {
			return fmt.Errorf("telegram sender: %w", err)
		}
		sender = tg
	} else {
		logger.Printf("telegram not configured, notifications go to the log")
		sender = notify.NewLogSender()
	}
	svc := notify.NewService(sender, repo, tel)

	ag := agent.New(repo, orc, svc, agent.Config{
		HorizonDays: cfg.Jobs.HorizonDays,
		TaskLimit:   cfg.Jobs.TaskLimit,
		MaxTokens:   cfg.Oracle.MaxTokens,
		Gate: gate.Policy{CoolDowns: map[state.NotificationKind]time.Duration{
			state.KindDue:   cfg.Jobs.DueCoolDown,
			state.KindFocus: cfg.Jobs.FocusCoolDown,
		}},
		Location: loc,
	})

	sched, err := scheduler.New(ag, tel, scheduler.Options{
		Location:  loc,
		Schedules: scheduleMap(cfg.Jobs),
	})
	if err != nil {
		return err
	}

	if cfg.Server.APIToken == "" {
		logger.Printf("server.api_token not set, /api is unauthenticated")
	}
	e := routes(repo, sched, tel, cfg.Server.APIToken)

	sched.Start()

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(cfg.Server.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	logger.Printf("listening on %s", cfg.Server.ListenAddress)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errCh:
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sched.Stop(shutCtx); err != nil {
		logger.Printf("scheduler stop: %v", err)
	}
	if err := e.Shutdown(shutCtx); err != nil && runErr == nil {
		runErr = err
	}
	logger.Printf("shutdown complete")
	return runErr
}

// routes builds the echo instance with every route mounted. Split from
// Run so handler tests can drive the full router.
func routes(repo *state.Repository, sched *scheduler.Scheduler, tel *telemetry.Telemetry, apiToken string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error {
		if err := repo.Ping(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		}
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(tel.Handler()))

	api := e.Group("/api")
	if apiToken != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(apiToken)) == 1, nil
		}))
	}

	jh := &JobsHandler{Sched: sched}
	jh.Register(api.Group("/jobs"))

	sh := &StateHandler{Repo: repo}
	sh.Register(api)

	return e
}

func scheduleMap(j config.JobsConfig) map[agent.JobKind]scheduler.Schedule {
	return map[agent.JobKind]scheduler.Schedule{
		agent.JobMorningDigest: {Spec: j.MorningDigest.Cron, Enabled: j.MorningDigest.Enabled},
		agent.JobUrgencyCheck:  {Spec: j.UrgencyCheck.Cron, Enabled: j.UrgencyCheck.Enabled},
		agent.JobFocusNudge:    {Spec: j.FocusNudge.Cron, Enabled: j.FocusNudge.Enabled},
		agent.JobWeeklyReview:  {Spec: j.WeeklyReview.Cron, Enabled: j.WeeklyReview.Enabled},
	}
}
