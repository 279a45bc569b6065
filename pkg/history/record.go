package history

import (
	"encoding/json"
	"time"

	"github.com/symphovais/voicepipe/pkg/pipeline"
)

// Record is the persisted summary of a finished run.
type Record struct {
	RunID        string          `json:"run_id"`
	IsSuccess    bool            `json:"is_success"`
	Canceled     bool            `json:"canceled,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	FailedStage  string          `json:"failed_stage,omitempty"`
	Text         string          `json:"text,omitempty"`
	StartTime    time.Time       `json:"start_time"`
	EndTime      time.Time       `json:"end_time"`
	DurationMs   int64           `json:"duration_ms"`
	Stages       json.RawMessage `json:"stages,omitempty"`
}

// NewRecord summarizes a pipeline result for storage. Stage metrics are
// embedded as serialized JSON so stores need no knowledge of their shape.
func NewRecord(result *pipeline.Result) Record {
	rec := Record{
		RunID:        result.RunID,
		IsSuccess:    result.IsSuccess,
		Canceled:     result.Canceled,
		ErrorMessage: result.ErrorMessage,
		FailedStage:  result.FailedStage,
		StartTime:    result.StartTime,
		EndTime:      result.EndTime,
		DurationMs:   result.Duration.Milliseconds(),
	}
	if result.Metrics != nil && result.Metrics.Len() > 0 {
		if b, err := json.Marshal(result.Metrics); err == nil {
			rec.Stages = b
		}
	}
	return rec
}

// WithText attaches the delivered transcript and returns the record.
func (r Record) WithText(text string) Record {
	r.Text = text
	return r
}
