package metrics

import (
	"strings"
	"testing"

	"github.com/Andrej220/adaptivelimiter/governor"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorReportsSnapshot(t *testing.T) {
	g, err := governor.New(governor.WithInitialConcurrency(3), governor.WithMaxConcurrency(10))
	if err != nil {
		t.Fatalf("new governor: %v", err)
	}

	c := NewCollector(g)
	if count := testutil.CollectAndCount(c); count != 8 {
		t.Fatalf("collected %d metrics, want 8", count)
	}

	const want = `
# HELP adaptivelimiter_capacity Current admitted-concurrency capacity.
# TYPE adaptivelimiter_capacity gauge
adaptivelimiter_capacity 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(want), "adaptivelimiter_capacity"); err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
}
