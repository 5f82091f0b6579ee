package audit

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/gates"
	"github.com/macrobrief/macrobrief/internal/scrub"
)

func f(v float64) *float64 { return &v }

func testBundle(t *testing.T) *gates.Bundle {
	t.Helper()
	doc := &extract.Document{
		Metrics: extract.Metrics{
			HYSpreadCurrent:           f(3.2),
			ForwardPECurrent:          f(21.0),
			RealYield10Y:              f(1.9),
			InflationExpectations5y5y: f(2.40),
			Yield10Y:                  f(4.30),
			Yield2Y:                   f(4.00),
			VIXIndex:                  f(18.5),
		},
		OIDeltas: map[extract.AssetClass]extract.OIDelta{
			extract.ClassEquity: {FuturesDelta: f(120000), OptionsDelta: f(10000)},
			extract.ClassRates:  {FuturesDelta: f(40000), OptionsDelta: f(38000)},
		},
	}
	runDate, _ := time.Parse("2006-01-02", "2025-03-07")
	bundle, err := gates.NewBuilder(nil, nil, nil, nil, nil).Build(runDate, doc)
	require.NoError(t, err)
	return bundle
}

func TestAuditWhitelistBreach(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	text := "[SECTION:GROWTH]\nThe 10y-2y yield curve steepened modestly. HY spreads also tightened, which supports growth."
	revised, findings := v.Audit(text, bundle, nil)

	require.Len(t, findings, 1)
	assert.Equal(t, KindWhitelistBreach, findings[0].Kind)
	assert.Equal(t, "GROWTH", findings[0].Section)
	assert.Equal(t, "HY spreads", findings[0].Metric)

	assert.Contains(t, revised, "The 10y-2y yield curve steepened modestly.")
	assert.NotContains(t, revised, "HY spreads also tightened")
	assert.Contains(t, revised, RevisionNotice)
}

func TestAuditAllowedCitationsPass(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	text := "[SECTION:CREDIT]\nHY spreads sit near 3.2, inside their long-run median.\n" +
		"[SECTION:VALUATION]\nThe forward P/E at 21 screens rich against history."
	revised, findings := v.Audit(text, bundle, nil)

	assert.Empty(t, findings)
	assert.Equal(t, text, revised)
}

func TestAuditLeakageResidual(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	text := "[SECTION:RATES]\nThe yield curve flattened. Positioning leans bullish into the auction."
	revised, findings := v.Audit(text, bundle, map[string]scrub.SectionTag{"RATES": scrub.TagNeutral})

	require.Len(t, findings, 1)
	assert.Equal(t, KindLeakageResidual, findings[0].Kind)
	assert.NotContains(t, revised, "leans bullish")
	assert.Contains(t, revised, "The yield curve flattened.")
	assert.Contains(t, revised, RevisionNotice)
}

func TestAuditDirectionalSectionKeepsLeakagePhrasing(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	text := "[SECTION:EQUITIES]\nVIX is subdued. Flow is positioned for a rally."
	_, findings := v.Audit(text, bundle, map[string]scrub.SectionTag{"EQUITIES": scrub.TagDirectional})
	assert.Empty(t, findings)
}

func TestAuditDoublyFlaggedSentenceReplacedOnce(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	// One sentence that both cites a foreign metric and leaks direction.
	text := "[SECTION:GROWTH]\nHY spreads confirm the bias to the upside here."
	revised, findings := v.Audit(text, bundle, nil)

	assert.Len(t, findings, 2)
	assert.Equal(t, 1, strings.Count(revised, RevisionNotice))
}

func TestAuditUnmappedSectionSkipsCitationCheck(t *testing.T) {
	v := New()
	bundle := testBundle(t)

	text := "[SECTION:SUMMARY]\nHY spreads, the VIX and the forward P/E all feature today."
	_, findings := v.Audit(text, bundle, map[string]scrub.SectionTag{"SUMMARY": scrub.TagDirectional})
	assert.Empty(t, findings)
}

func TestAuditNeverErrors(t *testing.T) {
	v := New()
	revised, findings := v.Audit("", nil, nil)
	assert.Equal(t, "", revised)
	assert.Empty(t, findings)
}
