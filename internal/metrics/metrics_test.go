package metrics

import (
	"testing"

	"github.com/agleyzer/hlslocalizer/internal/registry"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// value reads the current value of a gauge or counter.
func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var pb dto.Metric
	if err := m.Write(&pb); err != nil {
		t.Fatalf("failed to read metric: %v", err)
	}
	if pb.Gauge != nil {
		return pb.GetGauge().GetValue()
	}
	return pb.GetCounter().GetValue()
}

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"AttributeListsParsed", AttributeListsParsed},
		{"IdentifiersComputed", IdentifiersComputed},
		{"PlansTotal", PlansTotal},
		{"PlanDuration", PlanDuration},
		{"TasksPlanned", TasksPlanned},
		{"TasksCompleted", TasksCompleted},
		{"ItemsByState", ItemsByState},
		{"ClusterLeader", ClusterLeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestObserveItems(t *testing.T) {
	ObserveItems([]registry.Item{
		{ID: "a", State: registry.StateNew},
		{ID: "b", State: registry.StateNew},
		{ID: "c", State: registry.StateCompleted},
	})

	if got := value(t, ItemsByState.WithLabelValues("new")); got != 2 {
		t.Errorf("new items = %v, want 2", got)
	}
	if got := value(t, ItemsByState.WithLabelValues("completed")); got != 1 {
		t.Errorf("completed items = %v, want 1", got)
	}

	ObserveItems(nil)
	if got := value(t, ItemsByState.WithLabelValues("new")); got != 0 {
		t.Errorf("new items after reset = %v, want 0", got)
	}
}

func TestObserveLeader(t *testing.T) {
	ObserveLeader(true)
	if got := value(t, ClusterLeader); got != 1 {
		t.Errorf("leader = %v, want 1", got)
	}

	ObserveLeader(false)
	if got := value(t, ClusterLeader); got != 0 {
		t.Errorf("leader = %v, want 0", got)
	}
}

func TestCounters(t *testing.T) {
	before := value(t, TasksPlanned.WithLabelValues("video"))
	TasksPlanned.WithLabelValues("video").Add(3)
	if got := value(t, TasksPlanned.WithLabelValues("video")); got != before+3 {
		t.Errorf("video tasks = %v, want %v", got, before+3)
	}
}
