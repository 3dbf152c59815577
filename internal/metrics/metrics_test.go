package metrics_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/firasghr/tlsproxy/internal/metrics"
)

func TestRecordAndEncode(t *testing.T) {
	reg := metrics.New()

	reg.Record(200, "GET", "/ok", 0.01)
	reg.Record(403, "GET", "/x", 0.001)

	out, contentType, err := reg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if contentType == "" {
		t.Error("expected non-empty content type")
	}
	text := string(out)
	if !strings.Contains(text, "http_requests_total") {
		t.Errorf("expected http_requests_total in output, got:\n%s", text)
	}
	if !strings.Contains(text, "http_request_duration_seconds") {
		t.Errorf("expected http_request_duration_seconds in output, got:\n%s", text)
	}
	if !strings.Contains(text, `status="200"`) || !strings.Contains(text, `status="403"`) {
		t.Errorf("expected both status labels present, got:\n%s", text)
	}
}

func TestRecordUsesIdenticalLabelsForCounterAndHistogram(t *testing.T) {
	reg := metrics.New()
	reg.Record(500, "POST", "/upload", 0.25)

	out, _, err := reg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(out)
	wantLabels := `method="POST",path="/upload",status="500"`
	count := strings.Count(text, wantLabels)
	if count < 2 {
		t.Errorf("expected matching label tuple on both counter and histogram, found %d occurrences in:\n%s", count, text)
	}
}

func TestConcurrentRecord(t *testing.T) {
	reg := metrics.New()
	const goroutines = 500
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			reg.Record(200, "GET", "/ok", 0.001)
		}()
	}
	wg.Wait()

	out, _, err := reg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(out), "http_requests_total{") {
		t.Errorf("expected counter series present after concurrent records")
	}
}
