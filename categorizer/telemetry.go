package categorizer

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry collects per-run metrics on a private registry. Runs are short
// batch jobs, so metrics are exported as a node-exporter textfile rather than
// scraped. A nil *Telemetry discards everything.
type Telemetry struct {
	registry *prometheus.Registry

	paragraphs  prometheus.Counter
	cacheHits   prometheus.Counter
	ruleEffects *prometheus.CounterVec

	quality  *prometheus.GaugeVec
	accuracy prometheus.Gauge
	counts   *prometheus.GaugeVec
}

// NewTelemetry registers the run metrics on a fresh registry.
func NewTelemetry() *Telemetry {
	t := &Telemetry{
		registry: prometheus.NewRegistry(),
		paragraphs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labeltune_paragraphs_processed_total",
			Help: "Paragraphs classified and post-processed",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labeltune_score_cache_hits_total",
			Help: "Paragraphs whose raw scores were served from the score cache",
		}),
		ruleEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labeltune_rule_effects_total",
			Help: "Label adjustments applied by the rule table",
		}, []string{"label", "effect"}),
		quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labeltune_validation_score",
			Help: "Support-weighted precision, recall and F1",
		}, []string{"scope", "metric"}),
		accuracy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labeltune_validation_correct_percent",
			Help: "Share of matched predictions whose top label is correct",
		}),
		counts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labeltune_validation_items",
			Help: "Item counts of the last validation run",
		}, []string{"kind"}),
	}
	t.registry.MustRegister(t.paragraphs, t.cacheHits, t.ruleEffects, t.quality, t.accuracy, t.counts)
	return t
}

// Registry exposes the underlying registry.
func (t *Telemetry) Registry() *prometheus.Registry {
	if t == nil {
		return nil
	}
	return t.registry
}

func (t *Telemetry) observeCacheHit() {
	if t == nil {
		return
	}
	t.cacheHits.Inc()
}

func (t *Telemetry) observeParagraph(scores []RawScore, effects []effect) {
	if t == nil {
		return
	}
	t.paragraphs.Inc()
	for i, eff := range effects {
		label := scores[i].Label
		if eff&effectGated != 0 {
			t.ruleEffects.WithLabelValues(label, "gated").Inc()
		}
		if eff&effectBoosted != 0 {
			t.ruleEffects.WithLabelValues(label, "boosted").Inc()
		}
		if eff&effectPenalized != 0 {
			t.ruleEffects.WithLabelValues(label, "penalized").Inc()
		}
	}
}

// ObserveReport records the outcome of a validation run.
func (t *Telemetry) ObserveReport(r Report) {
	if t == nil {
		return
	}
	for scope, s := range map[string]Scores{"top": r.TopLabel, "overall": r.Overall} {
		t.quality.WithLabelValues(scope, "precision").Set(s.Precision)
		t.quality.WithLabelValues(scope, "recall").Set(s.Recall)
		t.quality.WithLabelValues(scope, "f1").Set(s.F1)
	}
	t.accuracy.Set(r.CorrectPercentage)
	t.counts.WithLabelValues("mistakes").Set(float64(r.MistakeCount))
	t.counts.WithLabelValues("matched").Set(float64(r.MatchedCount))
	t.counts.WithLabelValues("ground_truth").Set(float64(r.GroundTruthCount))
	t.counts.WithLabelValues("predictions").Set(float64(r.PredictionCount))
}

// WriteTextfile writes the collected metrics in the Prometheus text format.
func (t *Telemetry) WriteTextfile(path string) error {
	if t == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, t.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
