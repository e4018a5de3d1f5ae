package metrics

import (
	"sync"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

type labeledValue struct {
	value  float64
	labels []attribute.KeyValue
}

// NodeIdentity describes the process exporting metrics
type NodeIdentity struct {
	Alias    string
	Hostname string
	LogsDir  string
}

// Global variables for metric state management
var (
	currentValues = make(map[api.Observable]interface{})
	labeledValues = make(map[api.Observable]map[string]labeledValue)
	metricsMutex  sync.RWMutex
	callbacks     []api.Registration
	nodeIdentity  NodeIdentity
)
