// Package service runs the periodic refresh loop: fetch current rates and
// funding quotes, evaluate the opportunity table, publish a snapshot for the
// API and CLI, and dispatch threshold alerts.
package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"spot-perps-arb/internal/alerting"
	"spot-perps-arb/internal/arb"
	"spot-perps-arb/internal/config"
	"spot-perps-arb/internal/marketdata"
	"spot-perps-arb/internal/metrics"
	"spot-perps-arb/internal/scheduler"
)

// Row is one evaluated spot-vs-perps pairing in the snapshot table.
type Row struct {
	Asset         string            `json:"asset"`
	Protocol      string            `json:"protocol"`
	Market        string            `json:"market"`
	Direction     arb.Direction     `json:"direction"`
	Leverage      float64           `json:"leverage"`
	SpotRatePct   float64           `json:"spot_rate_pct"`
	Exchange      string            `json:"exchange"`
	FundingPct    float64           `json:"funding_pct"`
	NetArbPct     float64           `json:"net_arb_pct"`
	Profitability arb.Profitability `json:"profitability"`
}

// PerpsRow is the best funding differential between two venues for one base
// asset.
type PerpsRow struct {
	Asset string         `json:"asset"`
	Pair  *arb.PerpsPair `json:"pair"`
}

// Snapshot is the result of one refresh pass. Immutable once published.
type Snapshot struct {
	At          time.Time  `json:"at"`
	TargetHours int        `json:"target_hours"`
	Rows        []Row      `json:"rows"`
	PerpsPairs  []PerpsRow `json:"perps_pairs"`
	Best        *Row       `json:"best"`
	Diagnostics []string   `json:"diagnostics,omitempty"`
}

// Service orchestrates fetching, evaluation, and alerting.
type Service struct {
	cfg      *config.Config
	tokens   config.TokenConfig
	sched    *scheduler.Scheduler
	rates    marketdata.CurrentRatesSource
	staking  marketdata.StakingRatesSource
	funding  []marketdata.FundingSource
	policy   arb.LeveragePolicy
	metrics  *metrics.Metrics
	notifier alerting.Notifier
	logger   zerolog.Logger

	threshold decimal.Decimal
	channels  []string
	alertsOn  bool
	cooldown  time.Duration

	mu        sync.RWMutex
	snapshot  *Snapshot
	lastAlert map[string]time.Time
}

// New constructs the service.
func New(
	cfg *config.Config,
	tokens config.TokenConfig,
	sched *scheduler.Scheduler,
	rates marketdata.CurrentRatesSource,
	staking marketdata.StakingRatesSource,
	funding []marketdata.FundingSource,
	policy arb.LeveragePolicy,
	m *metrics.Metrics,
	notifier alerting.Notifier,
	logger zerolog.Logger,
) *Service {
	threshold := decimal.Zero
	if cfg.Alerting.Enabled && cfg.Alerting.ThresholdPct > 0 {
		threshold = decimal.NewFromFloat(cfg.Alerting.ThresholdPct)
	}

	return &Service{
		cfg:       cfg,
		tokens:    tokens,
		sched:     sched,
		rates:     rates,
		staking:   staking,
		funding:   funding,
		policy:    policy,
		metrics:   m,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		threshold: threshold,
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
		cooldown:  cfg.Alerting.Cooldown,
		lastAlert: make(map[string]time.Time),
	}
}

// Run begins the refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.sched == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.sched.Run(ctx, s.Refresh)
}

// Current returns the latest published snapshot, nil before the first
// successful refresh.
func (s *Service) Current() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Refresh 执行一次完整的行情刷新与机会评估。
func (s *Service) Refresh(ctx context.Context, at time.Time) error {
	started := time.Now()
	snapshot, err := s.evaluate(ctx, at)
	if s.metrics != nil {
		s.metrics.RefreshDuration.Observe(time.Since(started).Seconds())
		s.metrics.RefreshTotal.Inc()
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.RefreshErrors.Inc()
		}
		return err
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	s.publishMetrics(snapshot)

	s.logger.Info().Time("at", at).
		Int("rows", len(snapshot.Rows)).
		Bool("has_best", snapshot.Best != nil).
		Msg("snapshot published")

	s.maybeAlert(ctx, snapshot)
	return nil
}

func (s *Service) evaluate(ctx context.Context, at time.Time) (*Snapshot, error) {
	book := arb.NewQuoteBook(s.fetchRates(ctx), s.fetchStaking(ctx))
	if book.Empty() {
		return nil, fmt.Errorf("%w: current rates empty", arb.ErrDataUnavailable)
	}

	predicted := s.fetchFundings(ctx)
	targetHours := s.cfg.Arb.TargetHours
	leverage := s.cfg.Arb.DisplayLeverage

	snapshot := &Snapshot{At: at.UTC(), TargetHours: targetHours}
	diag := func(msg string) { snapshot.Diagnostics = append(snapshot.Diagnostics, msg) }

	for _, base := range s.baseAssets() {
		quotes := s.fundingSet(predicted, base, targetHours)

		if pair := arb.PerpsVsPerps(quotes, targetHours); pair != nil {
			snapshot.PerpsPairs = append(snapshot.PerpsPairs, PerpsRow{Asset: base, Pair: pair})
		}

		for _, variant := range s.cfg.Arb.Variants[base] {
			for _, direction := range []arb.Direction{arb.Long, arb.Short} {
				venues := arb.SpotRatesForAsset(s.tokens, book, variant, leverage, direction, targetHours, s.policy, diag)
				for _, venue := range venues {
					factor := arb.EffectiveFundingFactor(direction, leverage)
					for _, exchange := range quotes.Exchanges() {
						funding, _ := quotes.Get(exchange)
						net := arb.NetArb(venue.RatePct, factor*funding, direction)
						snapshot.Rows = append(snapshot.Rows, Row{
							Asset:         variant,
							Protocol:      venue.Protocol,
							Market:        venue.Market,
							Direction:     direction,
							Leverage:      leverage,
							SpotRatePct:   venue.RatePct,
							Exchange:      exchange,
							FundingPct:    funding,
							NetArbPct:     net,
							Profitability: arb.Assess(net, targetHours),
						})
					}
				}
			}
		}
	}

	sort.SliceStable(snapshot.Rows, func(i, j int) bool {
		return snapshot.Rows[i].NetArbPct < snapshot.Rows[j].NetArbPct
	})
	if len(snapshot.Rows) > 0 && snapshot.Rows[0].Profitability.Profitable {
		best := snapshot.Rows[0]
		snapshot.Best = &best
	}
	return snapshot, nil
}

// baseAssets returns the configured base assets in a stable order.
func (s *Service) baseAssets() []string {
	out := make([]string, 0, len(s.cfg.Arb.Variants))
	for base := range s.cfg.Arb.Variants {
		out = append(out, base)
	}
	sort.Strings(out)
	return out
}

func (s *Service) fetchRates(ctx context.Context) []arb.RateQuote {
	records := s.rates.CurrentRates(ctx)
	out := make([]arb.RateQuote, 0, len(records))
	for _, rec := range records {
		out = append(out, arb.RateQuote{
			Address:        rec.Address,
			LendingRatePct: rec.LendingRate,
			BorrowRatePct:  rec.BorrowingRate,
		})
	}
	return out
}

func (s *Service) fetchStaking(ctx context.Context) []arb.StakingQuote {
	records := s.staking.CurrentStakingRates(ctx)
	out := make([]arb.StakingQuote, 0, len(records))
	for _, rec := range records {
		out = append(out, arb.StakingQuote{Mint: rec.Address, APYDecimal: rec.APY})
	}
	return out
}

func (s *Service) fetchFundings(ctx context.Context) []marketdata.PredictedFunding {
	var out []marketdata.PredictedFunding
	for _, src := range s.funding {
		out = append(out, src.PredictedFundings(ctx)...)
	}
	return out
}

// fundingSet normalizes each venue's quote to a 1h interval and scales it to
// the target horizon. Insertion order follows source order so tables are
// reproducible.
func (s *Service) fundingSet(predicted []marketdata.PredictedFunding, symbol string, targetHours int) *arb.FundingQuoteSet {
	set := arb.NewFundingQuoteSet()
	for _, p := range predicted {
		if !strings.EqualFold(p.Symbol, symbol) {
			continue
		}
		hourly := p.RateDecimal
		if p.IntervalHours > 1 {
			hourly = p.RateDecimal / float64(p.IntervalHours)
		}
		scaled, err := arb.ScaleToTarget(hourly, 1, targetHours)
		if err != nil {
			continue
		}
		set.Put(p.Exchange, scaled)
	}
	return set
}

func (s *Service) publishMetrics(snapshot *Snapshot) {
	if s.metrics == nil {
		return
	}
	profitable := 0
	for _, row := range snapshot.Rows {
		if row.Profitability.Profitable {
			profitable++
		}
	}
	s.metrics.OpportunityRows.Set(float64(len(snapshot.Rows)))
	s.metrics.ProfitableRows.Set(float64(profitable))
	if snapshot.Best != nil {
		s.metrics.BestAnnualizedPct.Set(snapshot.Best.Profitability.AnnualizedPct)
	} else {
		s.metrics.BestAnnualizedPct.Set(0)
	}
}

func (s *Service) maybeAlert(ctx context.Context, snapshot *Snapshot) {
	if !s.alertsOn || s.notifier == nil || s.threshold.IsZero() || snapshot.Best == nil {
		return
	}
	best := snapshot.Best
	annualized := decimal.NewFromFloat(best.Profitability.AnnualizedPct)
	if annualized.LessThan(s.threshold) {
		return
	}

	key := fmt.Sprintf("%s|%s|%s|%s", best.Asset, best.Direction, best.Protocol, best.Exchange)
	s.mu.Lock()
	last, seen := s.lastAlert[key]
	if seen && time.Since(last) < s.cooldown {
		s.mu.Unlock()
		return
	}
	s.lastAlert[key] = time.Now().UTC()
	s.mu.Unlock()

	note := alerting.Notification{
		At:            snapshot.At,
		Asset:         best.Asset,
		Protocol:      best.Protocol,
		Market:        best.Market,
		Direction:     string(best.Direction),
		Exchange:      best.Exchange,
		Leverage:      decimal.NewFromFloat(best.Leverage),
		SpotRatePct:   decimal.NewFromFloat(best.SpotRatePct),
		FundingPct:    decimal.NewFromFloat(best.FundingPct),
		AnnualizedPct: annualized,
		ThresholdPct:  s.threshold,
		Channels:      s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("asset", best.Asset).Msg("failed to dispatch alert")
		return
	}
	if s.metrics != nil {
		s.metrics.AlertsSent.Inc()
	}
}
