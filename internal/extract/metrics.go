package extract

// AssetClass identifies a bulletin asset-class aggregate.
type AssetClass string

const (
	ClassEquity AssetClass = "equity"
	ClassRates  AssetClass = "rates"
	ClassFX     AssetClass = "fx"
)

// Metrics holds the numeric fields produced by the upstream extraction step.
// Every field is nullable: a nil pointer means the extractor could not read
// the value, which is normal missing data and must never be coerced to zero.
type Metrics struct {
	// Dashboard provenance
	DashboardAsOfDate string `json:"dashboard_as_of_date,omitempty"`
	BulletinDate      string `json:"bulletin_date,omitempty"`

	// Credit
	HYSpreadCurrent *float64 `json:"hy_spread_current"`
	HYSpreadMedian  *float64 `json:"hy_spread_median"`

	// Valuation
	ForwardPECurrent    *float64 `json:"forward_pe_current"`
	ForwardPEMedian     *float64 `json:"forward_pe_median"`
	ForwardPEPlus1Sigma *float64 `json:"forward_pe_plus_1sigma"`

	// Rates / inflation
	RealYield10Y            *float64 `json:"real_yield_10y"`
	InflationExpectations5y5y *float64 `json:"inflation_expectations_5y5y"`
	Yield10Y                *float64 `json:"yield_10y"`
	Yield2Y                 *float64 `json:"yield_2y"`

	// Growth quality
	InterestCoverageSmallCap *float64 `json:"interest_coverage_small_cap"`

	// Sentiment
	VIXIndex *float64 `json:"vix_index"`

	// Exchange-wide totals
	TotalVolume       *float64 `json:"total_volume"`
	TotalOpenInterest *float64 `json:"total_open_interest"`
	TotalOINetChange  *float64 `json:"total_oi_net_change"`

	// Context-only key numbers (never score inputs)
	SP500Current *float64 `json:"sp500_current"`
	DXYCurrent   *float64 `json:"dxy_current"`
	WTICurrent   *float64 `json:"wti_current"`
	HYGCurrent   *float64 `json:"hyg_current"`
}

// OIDelta carries one asset class's open-interest net changes, split by
// instrument type. Futures-led versus options-led is the whole signal.
type OIDelta struct {
	FuturesDelta *float64 `json:"futures_oi_delta"`
	OptionsDelta *float64 `json:"options_oi_delta"`
}

// TenorRow holds one Treasury futures tenor's bulletin totals.
type TenorRow struct {
	RowLabel     string   `json:"row_label"`
	TotalVolume  *float64 `json:"total_volume"`
	OpenInterest *float64 `json:"open_interest"`
	OIChange     *float64 `json:"oi_change"`
}

// TrendStatus is the live-data trend label for the broad equity index.
type TrendStatus string

const (
	TrendUp      TrendStatus = "Trending Up"
	TrendDown    TrendStatus = "Trending Down"
	TrendFlat    TrendStatus = "Flat"
	TrendUnknown TrendStatus = "Unknown"
)

// LiveSnapshot is the already-resolved live market context supplied by the
// live-data collaborator.
type LiveSnapshot struct {
	TrendStatus       TrendStatus `json:"sp500_trend_status"`
	Trend1moChangePct *float64    `json:"sp500_1mo_change_pct"`
	TrendAudit        string      `json:"sp500_trend_audit"`
	UST10YChangeBps   *float64    `json:"ust10y_change_bps"`
}

// Document is the full structured input handed to the ground-truth engine.
type Document struct {
	Metrics  Metrics                `json:"metrics"`
	OIDeltas map[AssetClass]OIDelta `json:"oi_deltas"`
	Tenors   map[string]TenorRow    `json:"rates_tenors,omitempty"`
	Live     *LiveSnapshot          `json:"live,omitempty"`
	Quality  []string               `json:"data_quality_notes,omitempty"`
}
