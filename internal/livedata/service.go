package livedata

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/macrobrief/macrobrief/internal/extract"
)

// Provider fetches daily closes for a symbol.
type Provider interface {
	DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error)
}

// Config wires the live-data service.
type Config struct {
	IndexSymbol string      `yaml:"index_symbol"` // broad equity index
	YieldSymbol string      `yaml:"yield_symbol"` // 10Y yield series
	Trend       TrendConfig `yaml:"trend"`
	CacheTTL    time.Duration `yaml:"cache_ttl"`
}

// DefaultConfig returns the production live-data settings.
func DefaultConfig() Config {
	return Config{
		IndexSymbol: "^spx",
		YieldSymbol: "10usy.b",
		Trend:       DefaultTrendConfig(),
		CacheTTL:    6 * time.Hour,
	}
}

// Service resolves live snapshots, caching candle history in Redis so a
// rerun of the same date does not refetch the provider.
type Service struct {
	provider Provider
	cache    *redis.Client
	cfg      Config
	log      zerolog.Logger
}

// NewService wires a service. cache may be nil; the service then always
// hits the provider.
func NewService(provider Provider, cache *redis.Client, cfg Config, log zerolog.Logger) *Service {
	return &Service{provider: provider, cache: cache, cfg: cfg, log: log}
}

// Snapshot resolves the live context for a run date. Provider failures
// degrade to an Unknown snapshot with the failure in the audit note; the
// run itself keeps going.
func (s *Service) Snapshot(ctx context.Context, runDate time.Time) *extract.LiveSnapshot {
	from := runDate.AddDate(0, 0, -70) // ~48 trading days of slack
	index, err := s.closes(ctx, s.cfg.IndexSymbol, from, runDate)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", s.cfg.IndexSymbol).Msg("live index fetch failed")
		return &extract.LiveSnapshot{
			TrendStatus: extract.TrendUnknown,
			TrendAudit:  "Live data unavailable: " + err.Error(),
		}
	}

	snap := ResolveTrend(index, runDate, s.cfg.Trend)

	yields, err := s.closes(ctx, s.cfg.YieldSymbol, from, runDate)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", s.cfg.YieldSymbol).Msg("live yield fetch failed")
	} else {
		snap.UST10YChangeBps = YieldChangeBps(yields, runDate, s.cfg.Trend)
	}
	return &snap
}

func (s *Service) closes(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	key := fmt.Sprintf("livedata:%s:%s", symbol, to.Format("2006-01-02"))
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached []Candle
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}

	candles, err := s.provider.DailyCloses(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(candles); err == nil {
			if err := s.cache.Set(ctx, key, raw, s.cfg.CacheTTL).Err(); err != nil {
				s.log.Debug().Err(err).Str("key", key).Msg("candle cache write failed")
			}
		}
	}
	return candles, nil
}

// StooqProvider fetches daily CSV history from stooq.com. No key needed.
type StooqProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewStooqProvider builds a provider with sane timeouts.
func NewStooqProvider() *StooqProvider {
	return &StooqProvider{
		BaseURL: "https://stooq.com/q/d/l/",
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// DailyCloses downloads and parses one symbol's daily history.
func (p *StooqProvider) DailyCloses(ctx context.Context, symbol string, from, to time.Time) ([]Candle, error) {
	q := url.Values{}
	q.Set("s", symbol)
	q.Set("d1", from.Format("20060102"))
	q.Set("d2", to.Format("20060102"))
	q.Set("i", "d")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build live data request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("live data request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live data request returned %d", resp.StatusCode)
	}
	return parseStooqCSV(resp.Body)
}

// parseStooqCSV reads the Date,Open,High,Low,Close[,Volume] layout.
func parseStooqCSV(r io.Reader) ([]Candle, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse live data CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("live data CSV has no rows")
	}

	candles := make([]Candle, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < 5 {
			continue
		}
		date, err := time.Parse("2006-01-02", row[0])
		if err != nil {
			continue
		}
		close_, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			continue
		}
		candles = append(candles, Candle{Date: date, Close: close_})
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("live data CSV had no parseable rows")
	}
	return candles, nil
}
