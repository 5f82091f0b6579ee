package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrobrief/macrobrief/internal/audit"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/gates"
	"github.com/macrobrief/macrobrief/internal/llm"
	"github.com/macrobrief/macrobrief/internal/scrub"
	"github.com/macrobrief/macrobrief/internal/store"
)

func f(v float64) *float64 { return &v }

// fakeClient returns a canned narrative.
type fakeClient struct {
	name string
	text string
	err  error
}

func (c *fakeClient) Name() string { return c.name }
func (c *fakeClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	return c.text, c.err
}

// memRepo records saves in memory.
type memRepo struct {
	saved []*store.RunRecord
}

func (m *memRepo) SaveRun(ctx context.Context, rec *store.RunRecord) error {
	m.saved = append(m.saved, rec)
	return nil
}
func (m *memRepo) LatestRun(ctx context.Context) (*store.RunRecord, error) {
	if len(m.saved) == 0 {
		return nil, nil
	}
	return m.saved[len(m.saved)-1], nil
}
func (m *memRepo) GetRun(ctx context.Context, id string) (*store.RunRecord, error) { return nil, nil }
func (m *memRepo) ListRuns(ctx context.Context, limit int) ([]*store.RunRecord, error) {
	return m.saved, nil
}

func pipelineDoc() *extract.Document {
	return &extract.Document{
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
		},
	}
}

func newRunner(t *testing.T, clients ...llm.Client) (*Runner, *memRepo) {
	t.Helper()
	scrubber, err := scrub.New(nil)
	require.NoError(t, err)
	repo := &memRepo{}
	return &Runner{
		Builder:     gates.NewBuilder(nil, nil, nil, nil, scrub.ActorTerms),
		Scrubber:    scrubber,
		Validator:   audit.New(),
		Clients:     clients,
		Repo:        repo,
		Metrics:     NewMetrics(nil),
		Log:         zerolog.Nop(),
		ArtifactDir: t.TempDir(),
	}, repo
}

func runDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2025-03-07")
	require.NoError(t, err)
	return d
}

func TestRunEndToEnd(t *testing.T) {
	narrative := "[SECTION:SUMMARY]\nSmart money drove a session with a bullish tilt.\n" +
		"[SECTION:EQUITIES]\nFutures-led flow supports upside continuation.\n" +
		"[SECTION:CREDIT]\nHY spreads remain contained."
	runner, repo := newRunner(t, &fakeClient{name: "openrouter", text: narrative})

	result, err := runner.Run(context.Background(), runDate(t), pipelineDoc())
	require.NoError(t, err)
	require.Len(t, result.Narratives, 1)

	final := result.Narratives[0].Text
	assert.NotContains(t, strings.ToLower(final), "smart money")
	assert.NotContains(t, final, "bullish tilt", "SUMMARY is neutral")
	assert.Contains(t, final, "upside continuation", "EQUITIES earned direction on a quiet day")
	assert.Contains(t, final, scrub.DefaultNotice)

	// Artifacts on disk.
	require.NotEmpty(t, result.HTMLPath)
	html, err := os.ReadFile(result.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "MacroBrief Daily — 2025-03-07")
	gt, err := os.ReadFile(filepath.Join(filepath.Dir(result.HTMLPath), "ground_truth.json"))
	require.NoError(t, err)
	assert.Contains(t, string(gt), `"run_date": "2025-03-07"`)

	// Persistence.
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "completed", repo.saved[0].Status)
	assert.Equal(t, result.RunID, repo.saved[0].ID)
}

func TestRunProviderFailureSkipsProvider(t *testing.T) {
	runner, repo := newRunner(t,
		&fakeClient{name: "openrouter", err: context.DeadlineExceeded},
		&fakeClient{name: "gemini", text: "[SECTION:SUMMARY]\nQuiet tape."},
	)

	result, err := runner.Run(context.Background(), runDate(t), pipelineDoc())
	require.NoError(t, err, "one dead provider must not fail the run")
	require.Len(t, result.Narratives, 1)
	assert.Equal(t, "gemini", result.Narratives[0].Provider)
	assert.Len(t, repo.saved, 1)
}

func TestRunNoProviders(t *testing.T) {
	runner, repo := newRunner(t)
	result, err := runner.Run(context.Background(), runDate(t), pipelineDoc())
	require.NoError(t, err, "ground-truth-only runs are valid")
	assert.Empty(t, result.Narratives)
	assert.NotNil(t, result.Bundle)
	assert.Len(t, repo.saved, 1)
}

func TestRunAuditFindingsSurface(t *testing.T) {
	// GROWTH may not cite HY spreads.
	narrative := "[SECTION:GROWTH]\nHY spreads confirm the growth picture."
	runner, _ := newRunner(t, &fakeClient{name: "openrouter", text: narrative})

	result, err := runner.Run(context.Background(), runDate(t), pipelineDoc())
	require.NoError(t, err)
	require.Len(t, result.Narratives, 1)
	require.Len(t, result.Narratives[0].Findings, 1)
	assert.Equal(t, audit.KindWhitelistBreach, result.Narratives[0].Findings[0].Kind)
	assert.Contains(t, result.Narratives[0].Text, audit.RevisionNotice)
	assert.Equal(t, 1, result.FindingCount())
}

func TestSectionTags(t *testing.T) {
	runner, _ := newRunner(t)
	bundle, err := runner.Builder.Build(runDate(t), pipelineDoc())
	require.NoError(t, err)

	tags := sectionTags(bundle)
	assert.Equal(t, scrub.TagDirectional, tags["EQUITIES"])
	assert.Equal(t, scrub.TagDirectional, tags["VALUATION"])
	assert.Equal(t, scrub.TagNeutral, tags["RATES"], "no rates signal in this document")
	assert.Equal(t, scrub.TagNeutral, tags["SUMMARY"])
}
