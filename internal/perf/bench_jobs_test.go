package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/odyssey-erp/catalog/internal/jobs"
	"github.com/odyssey-erp/catalog/internal/products"
	"github.com/odyssey-erp/catalog/jobs"
)

type flakyReconciler struct {
	calls int
}

// Reconcile fails every twentieth call and alternates created/updated outcomes.
func (f *flakyReconciler) Reconcile(ctx context.Context, req products.Request) (products.Result, error) {
	f.calls++
	if f.calls%20 == 0 {
		return products.Result{}, errors.New("timeout")
	}
	outcome := products.OutcomeCreated
	if f.calls%2 == 0 {
		outcome = products.OutcomeUpdated
	}
	return products.Result{Outcome: outcome, Product: products.Product{ID: int64(f.calls), Code: req.Code}}, nil
}

func TestPublishJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	job := jobs.NewPublishProductJob(&flakyReconciler{}, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	failures := 0
	for i := 1; i <= 200; i++ {
		task, err := jobs.NewPublishProductTask(jobs.PublishProductPayload{DraftID: int64(i), Code: fmt.Sprintf("%06d", i)})
		if err != nil {
			t.Fatalf("build task: %v", err)
		}
		if err := job.Handle(context.Background(), task); err != nil {
			failures++
		}
	}
	if failures != 10 {
		t.Fatalf("expected 10 failed runs, got %d", failures)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "catalog_jobs_total", map[string]string{"job": jobs.TaskPublishProduct, "status": "success"})
	failure := metricValue(t, families, "catalog_jobs_total", map[string]string{"job": jobs.TaskPublishProduct, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("publish job success ratio too low: %f", ratio)
	}

	created := metricValue(t, families, "catalog_reconcile_outcomes_total", map[string]string{"outcome": "created"})
	updated := metricValue(t, families, "catalog_reconcile_outcomes_total", map[string]string{"outcome": "updated"})
	if created+updated != success {
		t.Fatalf("outcomes %f do not match successful runs %f", created+updated, success)
	}

	if mean := histogramMean(t, families, "catalog_job_duration_seconds", map[string]string{"job": jobs.TaskPublishProduct}); mean > 0.5 {
		t.Fatalf("publish job duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
