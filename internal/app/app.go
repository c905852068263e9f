package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"spot-perps-arb/internal/alerting"
	"spot-perps-arb/internal/api"
	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/cache"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
	"spot-perps-arb/internal/metrics"
	"spot-perps-arb/internal/scheduler"
	"spot-perps-arb/internal/series"
	"spot-perps-arb/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	birdeye *marketdata.Birdeye
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) tokens() config.TokenConfig {
	return config.CachedTokenConfig(a.Config.Tokens.Path)
}

func (a *App) newMoneyMarkets() *marketdata.MoneyMarkets {
	return marketdata.NewMoneyMarkets(marketdata.MoneyMarketsOptions{
		BaseURL: a.Config.Sources.MoneyMarkets.BaseURL,
		Timeout: a.Config.Sources.MoneyMarkets.RequestTimeout,
		Retry:   a.Config.Sources.Retry,
	}, a.Logger)
}

func (a *App) newHyperliquid() *marketdata.Hyperliquid {
	return marketdata.NewHyperliquid(marketdata.HyperliquidOptions{
		BaseURL:   a.Config.Sources.Hyperliquid.BaseURL,
		Timeout:   a.Config.Sources.Hyperliquid.RequestTimeout,
		UserAgent: a.Config.Sources.Hyperliquid.UserAgent,
		Retry:     a.Config.Sources.Retry,
	}, a.Logger)
}

func (a *App) newDrift() *marketdata.Drift {
	return marketdata.NewDrift(marketdata.DriftOptions{
		BaseURL:       a.Config.Sources.Drift.BaseURL,
		Timeout:       a.Config.Sources.Drift.RequestTimeout,
		MarketIndexes: a.Config.Sources.Drift.MarketIndexes,
		Retry:         a.Config.Sources.Retry,
	}, a.Logger)
}

// newBirdeye returns the process-wide Birdeye client. The pacing gate lives on
// the client, so every price fetch must go through the same instance.
func (a *App) newBirdeye() *marketdata.Birdeye {
	if a.birdeye == nil {
		a.birdeye = marketdata.NewBirdeye(marketdata.BirdeyeOptions{
			BaseURL:     a.Config.Sources.Birdeye.BaseURL,
			APIKey:      a.Config.Sources.Birdeye.APIKey,
			Timeout:     a.Config.Sources.Birdeye.RequestTimeout,
			MinInterval: a.Config.Sources.Birdeye.MinInterval,
			Retry:       a.Config.Sources.Retry,
		}, a.Logger)
	}
	return a.birdeye
}

func (a *App) newBuilder(tokens config.TokenConfig) *series.Builder {
	mm := a.newMoneyMarkets()
	memo := cache.New(a.Config.Refresh.CacheTTL, a.Config.Refresh.CacheEntries)
	return series.NewBuilder(
		tokens,
		mm,
		mm,
		[]marketdata.FundingHistorySource{a.newHyperliquid(), a.newDrift()},
		arb.CapLeveragePolicy{},
		memo,
		a.Logger,
	)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newService(sched *scheduler.Scheduler, m *metrics.Metrics) *service.Service {
	mm := a.newMoneyMarkets()
	return service.New(
		a.Config,
		a.tokens(),
		sched,
		mm,
		mm,
		[]marketdata.FundingSource{a.newHyperliquid(), a.newDrift()},
		arb.CapLeveragePolicy{},
		m,
		a.newNotifier(),
		a.Logger,
	)
}

// Run executes the long-running watcher: refresh loop plus the JSON API.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Refresh.Interval,
		AlignToBucket:  a.Config.Refresh.AlignToBucket,
		StartupDelay:   a.Config.Refresh.StartupDelay,
		RunImmediately: true,
	}, a.Logger)

	m := metrics.New()
	svc := a.newService(sched, m)

	var server *api.Server
	if a.Config.Server.Enabled {
		server = api.NewServer(a.Config, svc, m, a.Logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error().Err(err).Msg("api shutdown failed")
			}
		}()
	}

	a.Logger.Info().Msg("starting watcher service")
	err := svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("watcher service stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	ProfitableOnly bool
	Limit          int
}

// BestOptions configure the best-configuration search command.
type BestOptions struct {
	Asset         string
	Direction     string
	MaxLeverage   float64
	LookbackHours int
	CapitalUSD    float64
}

// HistoryOptions identify one historical series configuration.
type HistoryOptions struct {
	Asset         string
	Protocol      string
	Market        string
	Direction     string
	Leverage      float64
	Exchange      string
	LookbackHours int
	CapitalUSD    float64
	WithPrices    bool
}

// ExportOptions extend HistoryOptions with output targets.
type ExportOptions struct {
	HistoryOptions
	CSVPath   string
	PNGPath   string
	MaxPoints int
}
