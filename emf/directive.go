package emf

import "metricq"

// Directive is a custom CloudWatchMetrics block emitted verbatim with every
// base line. It publishes specific metric names under dimension sets that
// differ from the codec defaults.
type Directive struct {
	Namespace  string             `json:"Namespace"`
	Dimensions [][]string         `json:"Dimensions"`
	Metrics    []MetricDefinition `json:"Metrics"`
}

// MetricDefinition names one metric inside a directive.
type MetricDefinition struct {
	Name string `json:"Name"`
	Unit string `json:"Unit,omitempty"`
}

// Metric builds a definition without a unit.
// Params: name metric name.
// Returns: definition.
func Metric(name string) MetricDefinition {
	return MetricDefinition{Name: name}
}

// MetricWithUnit builds a definition carrying a wire unit.
// Params: name metric name; unit wire unit.
// Returns: definition.
func MetricWithUnit(name string, unit metricq.Unit) MetricDefinition {
	return MetricDefinition{Name: name, Unit: unit.Name()}
}
