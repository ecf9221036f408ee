// Package inquiryclient is the Go counterpart of the site's contact form.
// It holds the form state, prechecks required fields and posts to /api/contact.
package inquiryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Status is the submission state shown next to the form
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

const (
	msgRequired      = "Please fill in your name, email, and message."
	msgFallbackOK    = "Thank you for your message! We will get back to you soon."
	msgFallbackError = "There was an error sending your message. Please try again."
	msgNetworkError  = "There was an error sending your message. Please check your connection and try again."
)

// ErrSubmitting is returned when Submit is called while a submission is in flight
var ErrSubmitting = errors.New("a submission is already in progress")

// Fields are the values the visitor typed
type Fields struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type apiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Form tracks one contact form. It is safe for concurrent use.
type Form struct {
	endpoint string
	client   *http.Client

	mu      sync.Mutex
	fields  Fields
	status  Status
	message string
}

// Option configures a Form
type Option func(*Form)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(f *Form) { f.client = c }
}

// New creates a form that posts to baseURL + "/api/contact"
func New(baseURL string, opts ...Option) *Form {
	f := &Form{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/contact",
		client:   &http.Client{Timeout: 30 * time.Second},
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Set replaces the field values
func (f *Form) Set(fields Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

// Fields returns the current field values
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Status returns the submission state and the message to display
func (f *Form) Status() (Status, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.message
}

// Submit posts the form. The returned status is also kept on the form.
// Fields are cleared only when the server answers 200.
func (f *Form) Submit(ctx context.Context) (Status, error) {
	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return StatusSubmitting, ErrSubmitting
	}
	fields := f.fields
	if strings.TrimSpace(fields.Name) == "" || strings.TrimSpace(fields.Email) == "" || strings.TrimSpace(fields.Message) == "" {
		f.status, f.message = StatusError, msgRequired
		f.mu.Unlock()
		return StatusError, nil
	}
	f.status, f.message = StatusSubmitting, ""
	f.mu.Unlock()

	ok, message, err := f.post(ctx, fields)

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case err != nil:
		f.status, f.message = StatusError, msgNetworkError
	case ok:
		f.status, f.message = StatusSuccess, message
		f.fields = Fields{}
	default:
		f.status, f.message = StatusError, message
	}
	return f.status, err
}

func (f *Form) post(ctx context.Context, fields Fields) (bool, string, error) {
	payload, err := json.Marshal(fields)
	if err != nil {
		return false, "", fmt.Errorf("failed to encode form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(payload))
	if err != nil {
		return false, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return false, "", fmt.Errorf("failed to submit form: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, "", fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode == http.StatusOK {
		if parsed.Message == "" {
			return true, msgFallbackOK, nil
		}
		return true, parsed.Message, nil
	}
	if parsed.Error == "" {
		return false, msgFallbackError, nil
	}
	return false, parsed.Error, nil
}
