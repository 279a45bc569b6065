package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	vperrors "github.com/symphovais/voicepipe/pkg/common/errors"
)

// DefaultEndpoint is the OpenAI speech-to-text endpoint. Any service that
// accepts the same multipart request and returns {"text": ...} works.
const DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// Config holds configuration options for the transcription stage and its
// HTTP client.
type Config struct {
	// Endpoint is the transcription API URL.
	// Default: DefaultEndpoint
	Endpoint string

	// APIKey authenticates requests via a bearer token. Required when the
	// stage talks to a real service.
	APIKey string

	// Model selects the speech model.
	// Default: "whisper-1"
	Model string

	// Language is an optional ISO-639-1 hint passed to the service.
	Language string

	// Prompt is optional context text that biases the transcription.
	Prompt string

	// FileName is the name reported for the uploaded audio part.
	// Default: "audio.wav"
	FileName string

	// Timeout bounds a single request when HTTPClient is nil.
	// Default: 60s
	Timeout time.Duration

	// HTTPClient overrides the client used for requests. When set, Timeout
	// is ignored.
	HTTPClient *http.Client

	// InputKey is the context key holding the WAV buffer.
	// Default: "audio"
	InputKey string

	// OutputKey is the context key the transcript text is written under.
	// Default: "text"
	OutputKey string

	// Retries is the number of additional attempts after a failure.
	// DefaultConfig sets 2; the zero value means no retries.
	Retries int

	// RetryDelay is the pause between attempts. DefaultConfig sets 1s.
	RetryDelay time.Duration
}

// DefaultConfig returns the default transcription configuration. APIKey is
// left empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Endpoint:   DefaultEndpoint,
		Model:      "whisper-1",
		FileName:   "audio.wav",
		Timeout:    60 * time.Second,
		InputKey:   "audio",
		OutputKey:  "text",
		Retries:    2,
		RetryDelay: time.Second,
	}
}

// withDefaults fills empty strings and zero durations.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.FileName == "" {
		c.FileName = def.FileName
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
	if c.InputKey == "" {
		c.InputKey = def.InputKey
	}
	if c.OutputKey == "" {
		c.OutputKey = def.OutputKey
	}
	return c
}

// Client posts audio to an OpenAI-compatible transcription endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a transcription client.
func NewClient(config Config) (*Client, error) {
	config = config.withDefaults()

	if config.APIKey == "" {
		return nil, vperrors.NewValidationError("transcribe", "APIKey", "", "api key is required").
			WithHint("supply the speech service credential")
	}
	if config.Timeout < 0 {
		return nil, vperrors.NewValidationError("transcribe", "Timeout", config.Timeout, "duration must not be negative")
	}

	hc := config.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: config.Timeout}
	}
	return &Client{config: config, httpClient: hc}, nil
}

// transcriptionResponse mirrors the JSON body of the transcriptions API.
type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the audio buffer and returns the recognized text.
//
// Rate limiting maps to ErrRateLimited and timeouts to ErrTimeout, so
// callers can branch with errors.Is. Other HTTP and decoding failures come
// back as an OperationError.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	req, err := c.buildRequest(ctx, audio)
	if err != nil {
		return "", vperrors.NewOperationError("transcribe", "build_request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var nerr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
			return "", fmt.Errorf("transcription request: %w: %v", vperrors.ErrTimeout, err)
		}
		return "", vperrors.NewOperationError("transcribe", "request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("transcription service: %w: %s", vperrors.ErrRateLimited, bodySnippet(resp.Body))
	}
	if resp.StatusCode >= 300 {
		cause := fmt.Errorf("http %d: %s", resp.StatusCode, bodySnippet(resp.Body))
		return "", vperrors.NewOperationError("transcribe", "request", cause)
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", vperrors.NewOperationError("transcribe", "decode", err)
	}
	return tr.Text, nil
}

// buildRequest assembles the multipart form the transcriptions API expects.
func (c *Client) buildRequest(ctx context.Context, audio []byte) (*http.Request, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.config.Model); err != nil {
		return nil, err
	}
	if c.config.Language != "" {
		if err := mw.WriteField("language", c.config.Language); err != nil {
			return nil, err
		}
	}
	if c.config.Prompt != "" {
		if err := mw.WriteField("prompt", c.config.Prompt); err != nil {
			return nil, err
		}
	}

	fw, err := mw.CreateFormFile("file", c.config.FileName)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req, nil
}

// bodySnippet reads a bounded prefix of an error response for diagnostics.
func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2048))
	s := strings.TrimSpace(string(b))
	if s == "" {
		return "(empty body)"
	}
	return s
}
