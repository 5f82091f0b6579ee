// Package pipeline orchestrates a full daily run: build the ground truth,
// generate narratives, scrub, audit, render, persist, deliver. The
// deterministic core can fail a run only at the extract boundary; every
// collaborator failure degrades to a note or a skipped step.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/macrobrief/macrobrief/internal/audit"
	"github.com/macrobrief/macrobrief/internal/extract"
	"github.com/macrobrief/macrobrief/internal/gates"
	"github.com/macrobrief/macrobrief/internal/llm"
	"github.com/macrobrief/macrobrief/internal/mailer"
	"github.com/macrobrief/macrobrief/internal/report"
	"github.com/macrobrief/macrobrief/internal/scrub"
	"github.com/macrobrief/macrobrief/internal/store"
)

// Runner wires the pipeline. Optional collaborators (clients, repo, mailer)
// may be nil; the corresponding steps are skipped.
type Runner struct {
	Builder     *gates.Builder
	Scrubber    *scrub.Scrubber
	Validator   *audit.Validator
	Clients     []llm.Client
	Repo        store.RunRepository
	Mailer      *mailer.Mailer
	Metrics     *Metrics
	Log         zerolog.Logger
	ArtifactDir string
}

// Result summarizes one completed run.
type Result struct {
	RunID      string             `json:"run_id"`
	RunDate    string             `json:"run_date"`
	Bundle     *gates.Bundle      `json:"bundle"`
	Narratives []report.Narrative `json:"narratives"`
	HTMLPath   string             `json:"html_path,omitempty"`
	Delivered  bool               `json:"delivered"`
}

// FindingCount totals audit findings across providers.
func (r *Result) FindingCount() int {
	n := 0
	for _, nar := range r.Narratives {
		n += len(nar.Findings)
	}
	return n
}

// Run executes the pipeline for one validated document.
func (r *Runner) Run(ctx context.Context, runDate time.Time, doc *extract.Document) (*Result, error) {
	runID := uuid.New().String()
	log := r.Log.With().Str("run_id", runID[:8]).Str("run_date", runDate.Format("2006-01-02")).Logger()
	log.Info().Msg("pipeline run starting")

	bundle, err := r.step("ground_truth", func() (*gates.Bundle, error) {
		return r.Builder.Build(runDate, doc)
	})
	if err != nil {
		r.count("failed")
		return nil, fmt.Errorf("ground truth failed: %w", err)
	}

	result := &Result{RunID: runID, RunDate: bundle.RunDate, Bundle: bundle}
	tags := sectionTags(bundle)

	prompt, err := buildNarrativePrompt(bundle)
	if err != nil {
		r.count("failed")
		return nil, fmt.Errorf("prompt build failed: %w", err)
	}

	for _, client := range r.Clients {
		nar, err := r.narrative(ctx, client, prompt, bundle, tags, log)
		if err != nil {
			log.Error().Err(err).Str("provider", client.Name()).Msg("narrative generation failed, provider skipped")
			continue
		}
		result.Narratives = append(result.Narratives, nar)
	}

	if err := r.render(result, doc, log); err != nil {
		log.Error().Err(err).Msg("render failed")
	}
	r.persist(ctx, result, log)
	r.deliver(result, log)

	if r.Metrics != nil {
		r.Metrics.LastRunTimestamp.SetToCurrentTime()
	}
	r.count("completed")
	log.Info().Int("narratives", len(result.Narratives)).Int("findings", result.FindingCount()).Msg("pipeline run complete")
	return result, nil
}

// narrative runs generation, scrub and audit for one provider.
func (r *Runner) narrative(ctx context.Context, client llm.Client, prompt string, bundle *gates.Bundle, tags map[string]scrub.SectionTag, log zerolog.Logger) (report.Narrative, error) {
	start := time.Now()
	raw, err := client.Complete(ctx, llm.Request{
		System:      narrativeSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   4000,
		Temperature: 0.4,
	})
	r.observe("narrative_"+client.Name(), start)
	if err != nil {
		return report.Narrative{}, err
	}

	start = time.Now()
	scrubbed := r.Scrubber.Scrub(raw, tags)
	r.observe("scrub", start)
	for _, rep := range scrubbed.Replacements {
		log.Debug().Str("rule", rep.Rule).Str("section", rep.Section).Str("original", rep.Original).Msg("scrub replacement")
		if r.Metrics != nil {
			r.Metrics.ScrubReplacements.WithLabelValues(rep.Rule).Inc()
		}
	}

	start = time.Now()
	revised, findings := r.Validator.Audit(scrubbed.Text, bundle, tags)
	r.observe("audit", start)
	for _, f := range findings {
		log.Warn().Str("kind", string(f.Kind)).Str("section", f.Section).Str("metric", f.Metric).Msg("audit finding")
		if r.Metrics != nil {
			r.Metrics.AuditFindings.WithLabelValues(string(f.Kind)).Inc()
		}
	}

	return report.Narrative{Provider: client.Name(), Text: revised, Findings: findings}, nil
}

// render writes the HTML brief and per-provider markdown artifacts.
func (r *Runner) render(result *Result, doc *extract.Document, log zerolog.Logger) error {
	if r.ArtifactDir == "" {
		return nil
	}
	start := time.Now()
	defer r.observe("render", start)

	dir := filepath.Join(r.ArtifactDir, result.RunDate)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact dir: %w", err)
	}

	html, err := report.RenderHTML(report.Input{
		Bundle:     result.Bundle,
		Narratives: result.Narratives,
		Staleness:  report.StalenessBadges(&doc.Metrics, mustDate(result.RunDate)),
	})
	if err != nil {
		return err
	}
	htmlPath := filepath.Join(dir, "brief.html")
	if err := os.WriteFile(htmlPath, html, 0o644); err != nil {
		return fmt.Errorf("failed to write brief: %w", err)
	}
	result.HTMLPath = htmlPath

	if rendered, err := result.Bundle.Render(); err == nil {
		if err := os.WriteFile(filepath.Join(dir, "ground_truth.json"), rendered, 0o644); err != nil {
			log.Warn().Err(err).Msg("ground truth artifact write failed")
		}
	}
	for _, nar := range result.Narratives {
		path := filepath.Join(dir, fmt.Sprintf("narrative_%s.md", nar.Provider))
		if err := os.WriteFile(path, report.RenderMarkdown(result.Bundle, nar), 0o644); err != nil {
			log.Warn().Err(err).Str("provider", nar.Provider).Msg("narrative artifact write failed")
		}
	}
	return nil
}

// persist stores the run record when a repository is wired.
func (r *Runner) persist(ctx context.Context, result *Result, log zerolog.Logger) {
	if r.Repo == nil {
		return
	}
	start := time.Now()
	defer r.observe("persist", start)

	bundleJSON, err := json.Marshal(result.Bundle)
	if err != nil {
		log.Error().Err(err).Msg("bundle marshal failed, run not persisted")
		return
	}
	narrativesJSON, _ := json.Marshal(result.Narratives)
	var findings []audit.Finding
	for _, nar := range result.Narratives {
		findings = append(findings, nar.Findings...)
	}
	findingsJSON, _ := json.Marshal(findings)
	if findings == nil {
		findingsJSON = []byte("[]")
	}

	rec := &store.RunRecord{
		ID:           result.RunID,
		RunDate:      result.RunDate,
		Status:       "completed",
		Bundle:       bundleJSON,
		Narratives:   narrativesJSON,
		Findings:     findingsJSON,
		FindingCount: result.FindingCount(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := r.Repo.SaveRun(ctx, rec); err != nil {
		log.Error().Err(err).Msg("run persistence failed")
	}
}

// deliver mails the brief when a mailer is wired and HTML was rendered.
func (r *Runner) deliver(result *Result, log zerolog.Logger) {
	if r.Mailer == nil || result.HTMLPath == "" {
		return
	}
	start := time.Now()
	defer r.observe("deliver", start)

	html, err := os.ReadFile(result.HTMLPath)
	if err != nil {
		log.Error().Err(err).Msg("brief read-back failed, delivery skipped")
		return
	}
	subject := fmt.Sprintf("MacroBrief Daily — %s", result.RunDate)
	sent, err := r.Mailer.Send(subject, html)
	if err != nil {
		log.Error().Err(err).Msg("mail delivery failed")
		return
	}
	result.Delivered = sent
}

// sectionTags derives each section's directional permission from the gated
// signals: equity-linked sections follow the equity gate, rates-linked
// sections the rates gate, everything else stays neutral.
func sectionTags(bundle *gates.Bundle) map[string]scrub.SectionTag {
	tags := map[string]scrub.SectionTag{
		"DASHBOARD":  scrub.TagNeutral,
		"SUMMARY":    scrub.TagNeutral,
		"FISCAL":     scrub.TagNeutral,
		"RATES":      scrub.TagNeutral,
		"CREDIT":     scrub.TagNeutral,
		"EQUITIES":   scrub.TagNeutral,
		"VALUATION":  scrub.TagNeutral,
		"CONCLUSION": scrub.TagNeutral,
	}
	if sig, ok := bundle.SignalFor(extract.ClassEquity); ok && sig.DirectionAllowed {
		tags["EQUITIES"] = scrub.TagDirectional
		tags["VALUATION"] = scrub.TagDirectional
	}
	if sig, ok := bundle.SignalFor(extract.ClassRates); ok && sig.DirectionAllowed {
		tags["RATES"] = scrub.TagDirectional
	}
	return tags
}

// step times one fallible pipeline stage.
func (r *Runner) step(name string, fn func() (*gates.Bundle, error)) (*gates.Bundle, error) {
	start := time.Now()
	defer r.observe(name, start)
	return fn()
}

func (r *Runner) observe(step string, start time.Time) {
	if r.Metrics != nil {
		r.Metrics.StepDuration.WithLabelValues(step).Observe(time.Since(start).Seconds())
	}
}

func (r *Runner) count(status string) {
	if r.Metrics != nil {
		r.Metrics.RunsTotal.WithLabelValues(status).Inc()
	}
}

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}
