package scrub

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScrubber(t *testing.T) *Scrubber {
	t.Helper()
	s, err := New(nil)
	require.NoError(t, err)
	return s
}

func TestScrubActorTermsEverywhere(t *testing.T) {
	s := newTestScrubber(t)
	text := "[SECTION:EQUITIES]\nSmart money bought the dip while hedge funds trimmed exposure.\n" +
		"[SECTION:RATES]\nDealers absorbed the supply; CTAs chased the move."

	res := s.Scrub(text, map[string]SectionTag{"EQUITIES": TagDirectional})

	assert.NotContains(t, strings.ToLower(res.Text), "smart money")
	assert.NotContains(t, strings.ToLower(res.Text), "hedge funds")
	assert.NotContains(t, strings.ToLower(res.Text), "dealers")
	assert.NotContains(t, res.Text, "CTAs")
	assert.Contains(t, res.Text, "market participants bought the dip")
	assert.True(t, res.NormalizationApplied)
	assert.Contains(t, res.Text, DefaultNotice)
	assert.Len(t, res.Replacements, 4)
}

func TestScrubDirectionalLeakageOnlyInNeutralSections(t *testing.T) {
	s := newTestScrubber(t)
	text := "[SECTION:EQUITIES]\nFlow shows an upside bias into quarter end.\n" +
		"[SECTION:RATES]\nPositioning shows upside bias in duration."

	res := s.Scrub(text, map[string]SectionTag{
		"EQUITIES": TagDirectional,
		"RATES":    TagNeutral,
	})

	assert.Contains(t, res.Text, "Flow shows an upside bias", "directional section keeps its language")
	assert.Contains(t, res.Text, "Positioning shows no directional read in duration")
	assert.False(t, res.NormalizationApplied, "neutral-scope rules do not trigger the notice")
}

func TestScrubUntaggedDefaultsToNeutral(t *testing.T) {
	s := newTestScrubber(t)
	res := s.Scrub("[SECTION:SUMMARY]\nA bullish tilt persists.", nil)
	assert.NotContains(t, res.Text, "bullish tilt")

	res = s.Scrub("Preamble with a bearish tilt before any marker.", nil)
	assert.NotContains(t, res.Text, "bearish tilt")
}

func TestScrubSinglePassNoCascade(t *testing.T) {
	cfg := &Config{
		Notice: DefaultNotice,
		Rules: []Rule{
			{Name: "first", Scope: ScopeGlobal, Phrases: []string{"alpha"}, Replacement: "beta"},
			{Name: "second", Scope: ScopeGlobal, Phrases: []string{"beta"}, Replacement: "gamma"},
		},
	}
	s, err := New(cfg)
	require.NoError(t, err)

	res := s.Scrub("alpha and beta walk in", nil)
	// "alpha" becomes "beta" but the output is never rescanned; only the
	// original "beta" becomes "gamma".
	assert.Contains(t, res.Text, "beta and gamma walk in")
	assert.Len(t, res.Replacements, 2)
}

func TestScrubOverlappingSpansFirstRuleWins(t *testing.T) {
	cfg := &Config{
		Notice: DefaultNotice,
		Rules: []Rule{
			{Name: "long", Scope: ScopeGlobal, Phrases: []string{"real money accounts"}, Replacement: "market participants"},
			{Name: "short", Scope: ScopeGlobal, Phrases: []string{"real money"}, Replacement: "flows"},
		},
	}
	s, err := New(cfg)
	require.NoError(t, err)

	res := s.Scrub("real money accounts added duration", nil)
	assert.Contains(t, res.Text, "market participants added duration")
	assert.Len(t, res.Replacements, 1)
}

func TestScrubCaseInsensitiveWordBounded(t *testing.T) {
	s := newTestScrubber(t)

	res := s.Scrub("INSTITUTIONS and Institutions and institutions.", nil)
	assert.Equal(t, 3, len(res.Replacements))

	// "bankside" must not match "banks".
	res = s.Scrub("The bankside venue saw normal volume.", nil)
	assert.Empty(t, res.Replacements)
}

func TestScrubIdempotent(t *testing.T) {
	s := newTestScrubber(t)
	text := "[SECTION:CREDIT]\nBanks and pensions added risk with a bullish tilt."

	first := s.Scrub(text, nil)
	second := s.Scrub(first.Text, nil)
	assert.Equal(t, first.Text, second.Text)
	assert.Empty(t, second.Replacements)
}

func TestStripCodeFences(t *testing.T) {
	in := "```markdown\n[SECTION:SUMMARY]\nBody text.\n```"
	assert.Equal(t, "[SECTION:SUMMARY]\nBody text.", StripCodeFences(in))

	plain := "[SECTION:SUMMARY]\nBody text."
	assert.Equal(t, plain, StripCodeFences(plain))

	inline := "uses ``` inline"
	assert.Equal(t, inline, StripCodeFences(inline))
}

func TestSplitSections(t *testing.T) {
	text := "intro\n[SECTION:DASHBOARD]\nfirst\n[SECTION:CONCLUSION]\nlast"
	secs := SplitSections(text)
	require.Len(t, secs, 2)
	assert.Equal(t, "DASHBOARD", secs[0].Name)
	assert.Equal(t, "CONCLUSION", secs[1].Name)
	assert.Contains(t, text[secs[0].Start:secs[0].End], "first")
	assert.Contains(t, text[secs[1].Start:secs[1].End], "last")
}
