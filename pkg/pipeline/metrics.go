package pipeline

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// StageMetrics records timing and custom measurements for the final attempt
// of one stage. The executor stamps the name, type, and timestamps; stages
// add their own named measurements through Set or StageResult.WithMetric.
//
// Once a run completes its metrics are read-only value objects, safe to
// serialize and hand to any external sink.
type StageMetrics struct {
	StageName string
	StageType string
	StartTime time.Time
	EndTime   time.Time

	mu     sync.RWMutex
	custom map[string]interface{}
}

// Set records a named custom measurement, overwriting any previous value.
func (m *StageMetrics) Set(name string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.custom == nil {
		m.custom = make(map[string]interface{})
	}
	m.custom[name] = value
}

// Get returns the raw custom measurement stored under name.
func (m *StageMetrics) Get(name string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.custom[name]
	return v, ok
}

// Metric returns the custom measurement stored under name asserted to type
// T. It returns the zero value and false when the measurement is absent or
// holds a different type.
func Metric[T any](m *StageMetrics, name string) (T, bool) {
	var zero T
	v, ok := m.Get(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}

// Names returns the names of all custom measurements, sorted.
func (m *StageMetrics) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.custom))
	for name := range m.custom {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Duration returns the wall-clock time between StartTime and EndTime,
// clamped to zero when the clock moved backwards.
func (m *StageMetrics) Duration() time.Duration {
	d := m.EndTime.Sub(m.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

// DurationMs returns Duration in whole milliseconds. It is always derived
// from the two timestamps, never stored, so it cannot drift.
func (m *StageMetrics) DurationMs() int64 {
	return m.Duration().Milliseconds()
}

// MarshalJSON implements json.Marshaler.
func (m *StageMetrics) MarshalJSON() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var custom map[string]interface{}
	if len(m.custom) > 0 {
		custom = make(map[string]interface{}, len(m.custom))
		for k, v := range m.custom {
			custom[k] = v
		}
	}

	return json.Marshal(struct {
		StageName  string                 `json:"stage_name"`
		StageType  string                 `json:"stage_type,omitempty"`
		StartTime  time.Time              `json:"start_time"`
		EndTime    time.Time              `json:"end_time"`
		DurationMs int64                  `json:"duration_ms"`
		Metrics    map[string]interface{} `json:"metrics,omitempty"`
	}{
		StageName:  m.StageName,
		StageType:  m.StageType,
		StartTime:  m.StartTime,
		EndTime:    m.EndTime,
		DurationMs: m.DurationMs(),
		Metrics:    custom,
	})
}

// PipelineMetrics is the ordered collection of StageMetrics for one run.
// Exactly one entry is appended per completed stage: the final attempt of
// that stage, whether it succeeded or exhausted its retries.
type PipelineMetrics struct {
	mu     sync.RWMutex
	stages []*StageMetrics
}

func (pm *PipelineMetrics) append(sm *StageMetrics) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.stages = append(pm.stages, sm)
}

// Len returns the number of completed stages recorded so far.
func (pm *PipelineMetrics) Len() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.stages)
}

// Stages returns the recorded stage metrics in execution order.
func (pm *PipelineMetrics) Stages() []*StageMetrics {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stages := make([]*StageMetrics, len(pm.stages))
	copy(stages, pm.stages)
	return stages
}

// StageNames returns the recorded stage names in execution order. Duplicate
// names are preserved positionally.
func (pm *PipelineMetrics) StageNames() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, len(pm.stages))
	for i, sm := range pm.stages {
		names[i] = sm.StageName
	}
	return names
}

// TotalDuration returns the summed duration of all recorded stages. This
// excludes retry waits, so it can be shorter than the run's wall-clock
// duration.
func (pm *PipelineMetrics) TotalDuration() time.Duration {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	var total time.Duration
	for _, sm := range pm.stages {
		total += sm.Duration()
	}
	return total
}

// MarshalJSON implements json.Marshaler, rendering the stages as an array
// in execution order.
func (pm *PipelineMetrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(pm.Stages())
}
