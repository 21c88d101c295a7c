package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounterVecsAcceptLabels(t *testing.T) {
	before := testutil.ToFloat64(AdvancesTotal.WithLabelValues("manual"))
	AdvancesTotal.WithLabelValues("manual").Inc()
	if got := testutil.ToFloat64(AdvancesTotal.WithLabelValues("manual")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}

	IngestFilesTotal.WithLabelValues("failed", "heic").Inc()
	if testutil.ToFloat64(IngestFilesTotal.WithLabelValues("failed", "heic")) < 1 {
		t.Error("expected failed heic counter to be incremented")
	}
}

func TestCollectorsLint(t *testing.T) {
	CaptureJobsTotal.WithLabelValues("completed")
	problems, err := testutil.CollectAndLint(CaptureJobsTotal)
	if err != nil {
		t.Fatalf("lint failed: %v", err)
	}
	for _, p := range problems {
		t.Errorf("lint problem: %s: %s", p.Metric, p.Text)
	}
}
