package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
	"github.com/symphovais/voicepipe/pkg/history"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/runner"
)

// saveTimeout bounds the background history write after a run finishes.
const saveTimeout = 5 * time.Second

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// handleTrigger accepts a WAV clip, admits it through the guard, and
// submits a run. With ?wait=1 it answers with the finished record;
// otherwise it answers 202 with the run ID immediately.
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	s.countRequest("trigger")

	release := func() {}
	if s.config.Guard != nil {
		rel, err := s.config.Guard.Admit()
		if err != nil {
			switch {
			case errors.Is(err, vperrors.ErrRateLimited):
				s.countDenied("rate_limited")
				writeError(w, http.StatusTooManyRequests, "trigger budget exhausted")
			case errors.Is(err, vperrors.ErrCapacityExceeded):
				s.countDenied("too_many_runs")
				writeError(w, http.StatusServiceUnavailable, "too many runs in flight")
			default:
				writeError(w, http.StatusInternalServerError, err.Error())
			}
			return
		}
		release = rel
	}

	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes))
	if err != nil {
		release()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.countDenied("body_too_large")
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("audio exceeds the %d byte limit", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "read audio: "+err.Error())
		return
	}
	if len(audio) == 0 {
		release()
		s.countDenied("empty_body")
		writeError(w, http.StatusBadRequest, "empty audio body")
		return
	}

	run := pipeline.NewContext()
	run.Set(s.config.AudioKey, audio)

	// Runs outlive their trigger request; only daemon shutdown stops them.
	results, err := s.config.Runner.Submit(context.Background(), runner.Submission{
		Pipeline: s.config.Pipeline,
		Run:      run,
	})
	if err != nil {
		release()
		switch {
		case errors.Is(err, runner.ErrQueueFull):
			s.countDenied("queue_full")
			writeError(w, http.StatusServiceUnavailable, "run queue is full")
		case errors.Is(err, runner.ErrShutdown):
			writeError(w, http.StatusServiceUnavailable, "shutting down")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	done := make(chan history.Record, 1)
	go func() {
		result := <-results
		release()
		done <- s.finishRun(run, result)
	}()

	if r.URL.Query().Get("wait") == "1" {
		select {
		case record := <-done:
			writeJSON(w, http.StatusOK, record)
		case <-r.Context().Done():
			// The caller went away; the run finishes on its own.
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": run.RunID()})
}

// finishRun distills the result into a history record and persists it.
func (s *Server) finishRun(run *pipeline.Context, result *pipeline.Result) history.Record {
	record := history.NewRecord(result)
	if text, ok := pipeline.Data[string](run, s.config.TextKey); ok {
		record = record.WithText(text)
	}

	if s.config.Store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := s.config.Store.Save(ctx, record); err != nil {
			s.reportError(fmt.Errorf("save run %s: %w", record.RunID, err))
		}
	}
	return record
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	s.countRequest("recent")

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records := []history.Record{}
	if s.config.Store != nil {
		found, err := s.config.Store.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "history: "+err.Error())
			return
		}
		if found != nil {
			records = found
		}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	s.countRequest("get")

	id := r.PathValue("id")
	if s.config.Store == nil {
		writeError(w, http.StatusNotFound, "unknown run "+id)
		return
	}

	record, err := s.config.Store.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, "unknown run "+id)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// StatusResponse is the /v1/status payload.
type StatusResponse struct {
	Uptime   string          `json:"uptime"`
	Runner   RunnerStatus    `json:"runner"`
	Guard    *GuardStatus    `json:"guard,omitempty"`
	Pipeline PipelineSummary `json:"pipeline"`
}

// RunnerStatus reports the worker pool.
type RunnerStatus struct {
	Workers int `json:"workers"`
	Active  int `json:"active"`
	Queued  int `json:"queued"`
}

// GuardStatus reports admission headroom.
type GuardStatus struct {
	Tokens        float64 `json:"tokens,omitempty"`
	Burst         int     `json:"burst,omitempty"`
	SlotsInUse    int     `json:"slots_in_use"`
	SlotsCapacity int     `json:"slots_capacity,omitempty"`
}

// PipelineSummary reports cumulative run statistics.
type PipelineSummary struct {
	TotalRuns      int64 `json:"total_runs"`
	SuccessfulRuns int64 `json:"successful_runs"`
	FailedRuns     int64 `json:"failed_runs"`
	CanceledRuns   int64 `json:"canceled_runs"`
	AverageMs      int64 `json:"average_ms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.countRequest("status")

	stats := s.config.Pipeline.Stats()
	resp := StatusResponse{
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Runner: RunnerStatus{
			Workers: s.config.Runner.Workers(),
			Active:  s.config.Runner.Active(),
			Queued:  s.config.Runner.QueueDepth(),
		},
		Pipeline: PipelineSummary{
			TotalRuns:      stats.TotalRuns,
			SuccessfulRuns: stats.SuccessfulRuns,
			FailedRuns:     stats.FailedRuns,
			CanceledRuns:   stats.CanceledRuns,
			AverageMs:      stats.AverageDuration.Milliseconds(),
		},
	}
	if s.config.Guard != nil {
		st := s.config.Guard.Status()
		resp.Guard = &GuardStatus{
			Tokens:        st.Tokens,
			Burst:         st.Burst,
			SlotsInUse:    st.SlotsInUse,
			SlotsCapacity: st.SlotsCapacity,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
