// Package integration exercises the dictation stack end to end: control
// surface, admission guard, run queue, pipeline stages, and history.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/symphovais/voicepipe/internal/testutil"
	"github.com/symphovais/voicepipe/pkg/control"
	"github.com/symphovais/voicepipe/pkg/dictation"
	"github.com/symphovais/voicepipe/pkg/guard"
	"github.com/symphovais/voicepipe/pkg/history"
	"github.com/symphovais/voicepipe/pkg/pipeline"
	"github.com/symphovais/voicepipe/pkg/runner"
)

// transcriberStub fakes the speech-to-text service. Each request increments
// calls; fail makes the first n requests return HTTP 500.
type transcriberStub struct {
	text  string
	fail  int32
	calls int32
}

func (ts *transcriberStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&ts.calls, 1)

		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", got)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("unexpected model %q", got)
		}

		if n <= atomic.LoadInt32(&ts.fail) {
			http.Error(w, "backend overloaded", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": ts.text})
	}
}

// newDictationPipeline assembles the stock three-stage pipeline against a
// stub transcription endpoint.
func newDictationPipeline(t *testing.T, endpoint string, retries int) pipeline.Pipeline {
	t.Helper()

	cfg := dictation.DefaultConfig()
	cfg.Transcribe.Endpoint = endpoint
	cfg.Transcribe.APIKey = "test-key"
	cfg.Transcribe.Retries = retries
	cfg.Transcribe.RetryDelay = time.Millisecond

	pipe, err := dictation.New(cfg)
	testutil.AssertNoError(t, err)
	return pipe
}

func clip() []byte {
	return testutil.WAVClip(16000, 16000, 6000)
}

func TestDictationRunThroughControlSurface(t *testing.T) {
	stub := &transcriberStub{text: "um hello world period this is uh a test period"}
	stt := httptest.NewServer(stub.handler(t))
	defer stt.Close()

	pipe := newDictationPipeline(t, stt.URL, 0)

	gd, err := guard.New(guard.DefaultConfig())
	testutil.AssertNoError(t, err)

	workers, err := runner.New(runner.Config{Workers: 2, QueueSize: 4})
	testutil.AssertNoError(t, err)
	defer func() { <-workers.Shutdown() }()

	store := history.NewMemoryStore(20)
	defer store.Close()

	srv, err := control.New(control.Config{
		Pipeline: pipe,
		Runner:   workers,
		Guard:    gd,
		Store:    store,
	})
	testutil.AssertNoError(t, err)

	ctrl := httptest.NewServer(srv.Handler())
	defer ctrl.Close()

	resp, err := http.Post(ctrl.URL+"/v1/runs?wait=1", "audio/wav", bytes.NewReader(clip()))
	testutil.AssertNoError(t, err)
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, http.StatusOK)

	var rec history.Record
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&rec))
	testutil.AssertEqual(t, rec.IsSuccess, true)
	testutil.AssertEqual(t, rec.Text, "Hello world. This is a test.")
	if rec.RunID == "" {
		t.Fatal("record is missing a run ID")
	}

	// The same record is served by the lookup endpoints.
	got, err := http.Get(ctrl.URL + "/v1/runs/" + rec.RunID)
	testutil.AssertNoError(t, err)
	defer got.Body.Close()
	testutil.AssertEqual(t, got.StatusCode, http.StatusOK)

	var fetched history.Record
	testutil.AssertNoError(t, json.NewDecoder(got.Body).Decode(&fetched))
	testutil.AssertEqual(t, fetched.RunID, rec.RunID)
	testutil.AssertEqual(t, fetched.Text, rec.Text)

	status, err := http.Get(ctrl.URL + "/v1/status")
	testutil.AssertNoError(t, err)
	defer status.Body.Close()

	var st control.StatusResponse
	testutil.AssertNoError(t, json.NewDecoder(status.Body).Decode(&st))
	testutil.AssertEqual(t, st.Pipeline.TotalRuns, int64(1))
	testutil.AssertEqual(t, st.Pipeline.SuccessfulRuns, int64(1))
}

func TestDictationAsyncTriggerLandsInHistory(t *testing.T) {
	stub := &transcriberStub{text: "asynchronous period"}
	stt := httptest.NewServer(stub.handler(t))
	defer stt.Close()

	pipe := newDictationPipeline(t, stt.URL, 0)

	workers, err := runner.New(runner.DefaultConfig())
	testutil.AssertNoError(t, err)
	defer func() { <-workers.Shutdown() }()

	store := history.NewMemoryStore(20)
	defer store.Close()

	srv, err := control.New(control.Config{
		Pipeline: pipe,
		Runner:   workers,
		Store:    store,
	})
	testutil.AssertNoError(t, err)

	ctrl := httptest.NewServer(srv.Handler())
	defer ctrl.Close()

	resp, err := http.Post(ctrl.URL+"/v1/runs", "audio/wav", bytes.NewReader(clip()))
	testutil.AssertNoError(t, err)
	defer resp.Body.Close()
	testutil.AssertEqual(t, resp.StatusCode, http.StatusAccepted)

	var accepted struct {
		RunID string `json:"run_id"`
	}
	testutil.AssertNoError(t, json.NewDecoder(resp.Body).Decode(&accepted))
	if accepted.RunID == "" {
		t.Fatal("trigger response is missing a run ID")
	}

	testutil.Eventually(t, testutil.TestTimeout, func() bool {
		_, err := store.Get(context.Background(), accepted.RunID)
		return err == nil
	}, "run never reached the history store")

	rec, err := store.Get(context.Background(), accepted.RunID)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, rec.IsSuccess, true)
	testutil.AssertEqual(t, rec.Text, "Asynchronous.")
}

func TestTranscriberRetriesThenSucceeds(t *testing.T) {
	stub := &transcriberStub{text: "third time lucky period", fail: 2}
	stt := httptest.NewServer(stub.handler(t))
	defer stt.Close()

	pipe := newDictationPipeline(t, stt.URL, 2)

	run := pipeline.NewContext()
	run.Set(dictation.KeyAudio, clip())

	result, err := pipe.Execute(context.Background(), run)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, result.IsSuccess, true)
	testutil.AssertEqual(t, atomic.LoadInt32(&stub.calls), int32(3))

	text, ok := pipeline.Data[string](run, dictation.KeyText)
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, text, "Third time lucky.")

	stats := pipe.Stats()
	testutil.AssertEqual(t, stats.StageStats["transcribe"].Retries, int64(2))
}

func TestTranscriberFailureRecordsFailedStage(t *testing.T) {
	stub := &transcriberStub{text: "never returned", fail: 100}
	stt := httptest.NewServer(stub.handler(t))
	defer stt.Close()

	pipe := newDictationPipeline(t, stt.URL, 1)

	run := pipeline.NewContext()
	run.Set(dictation.KeyAudio, clip())

	result, err := pipe.Execute(context.Background(), run)
	testutil.AssertError(t, err)
	testutil.AssertEqual(t, result.IsSuccess, false)
	testutil.AssertEqual(t, result.FailedStage, "transcribe")
	testutil.AssertEqual(t, atomic.LoadInt32(&stub.calls), int32(2))

	rec := history.NewRecord(result)
	testutil.AssertEqual(t, rec.IsSuccess, false)
	testutil.AssertEqual(t, rec.FailedStage, "transcribe")
	if rec.ErrorMessage == "" {
		t.Fatal("expected the failure message to survive into the record")
	}
}

func TestHistoryRetentionAcrossRuns(t *testing.T) {
	stub := &transcriberStub{text: "short note period"}
	stt := httptest.NewServer(stub.handler(t))
	defer stt.Close()

	pipe := newDictationPipeline(t, stt.URL, 0)

	store := history.NewMemoryStore(20)
	defer store.Close()

	for i := 0; i < 5; i++ {
		run := pipeline.NewContext()
		run.Set(dictation.KeyAudio, clip())

		result, err := pipe.Execute(context.Background(), run)
		testutil.AssertNoError(t, err)

		rec := history.NewRecord(result)
		if text, ok := pipeline.Data[string](run, dictation.KeyText); ok {
			rec = rec.WithText(text)
		}
		testutil.AssertNoError(t, store.Save(context.Background(), rec))
	}

	removed, err := store.Prune(context.Background(), 2)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, removed, 3)

	recent, err := store.Recent(context.Background(), 10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, len(recent), 2)

	// Newest first, and the newest record survives pruning.
	if recent[0].StartTime.Before(recent[1].StartTime) {
		t.Fatal("recent records are not newest first")
	}
	for _, rec := range recent {
		testutil.AssertEqual(t, rec.Text, "Short note.")
	}
}

func BenchmarkDictationRun(b *testing.B) {
	stt := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		fmt.Fprint(w, `{"text": "benchmark period"}`)
	}))
	defer stt.Close()

	cfg := dictation.DefaultConfig()
	cfg.Transcribe.Endpoint = stt.URL
	cfg.Transcribe.APIKey = "test-key"
	pipe, err := dictation.New(cfg)
	if err != nil {
		b.Fatal(err)
	}

	audio := clip()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		run := pipeline.NewContext()
		run.Set(dictation.KeyAudio, audio)
		if _, err := pipe.Execute(context.Background(), run); err != nil {
			b.Fatal(err)
		}
	}
}
