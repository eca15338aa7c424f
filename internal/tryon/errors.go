package tryon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConfigurationError covers missing credentials and malformed request shapes.
// It is raised before any network call and never retried.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// TransportError reports a failure fetching or encoding an image.
type TransportError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("transport error: fetch %s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("transport error: fetch %s: %v", e.URL, e.Err)
	default:
		return "transport error: fetch " + e.URL
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a non-success HTTP answer or a malformed success
// payload from a provider endpoint.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Reason     string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": provider error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RemoteJobFailed means the provider itself declared the job failed.
type RemoteJobFailed struct {
	JobID   string
	Details string
}

func (e *RemoteJobFailed) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("remote job %s failed", e.JobID)
	}
	return fmt.Sprintf("remote job %s failed: %s", e.JobID, e.Details)
}

// PollTimeout is returned after the attempt budget is spent without a
// terminal status.
type PollTimeout struct {
	JobID    string
	Attempts int
	Elapsed  time.Duration
}

func (e *PollTimeout) Error() string {
	return fmt.Sprintf("remote job %s still running after %d attempts (%dms)", e.JobID, e.Attempts, e.Elapsed.Milliseconds())
}

// Cancelled wraps the caller's context error.
type Cancelled struct {
	Err error
}

func (e *Cancelled) Error() string {
	if e.Err == nil {
		return "cancelled"
	}
	return "cancelled: " + e.Err.Error()
}

func (e *Cancelled) Unwrap() error { return e.Err }

// UnknownProvider is returned when no adapter is registered under a name.
type UnknownProvider struct {
	Name string
}

func (e *UnknownProvider) Error() string {
	return fmt.Sprintf("unknown provider %q", e.Name)
}

// cancelled converts an error caused by the context into Cancelled. Errors
// with their own classification are left alone even when ctx is done.
func cancelled(err error) error {
	var c *Cancelled
	if err == nil || errors.As(err, &c) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Cancelled{Err: err}
	}
	return err
}

// FailureResult maps any error into the uniform failure shape. Provider
// bodies are kept as details for diagnostics.
func FailureResult(err error) GenerationResult {
	res := GenerationResult{Success: false, ErrorMessage: "generation failed"}
	if err == nil {
		return res
	}
	var (
		cfgErr    *ConfigurationError
		unknown   *UnknownProvider
		transport *TransportError
		provider  *ProviderError
		remote    *RemoteJobFailed
		timeout   *PollTimeout
		cancelErr *Cancelled
	)
	switch {
	case errors.As(err, &cfgErr):
		res.ErrorMessage = "invalid configuration: " + cfgErr.Reason
	case errors.As(err, &unknown):
		res.ErrorMessage = unknown.Error()
	case errors.As(err, &transport):
		res.ErrorMessage = "could not load image"
		res.Details = transport.Error()
	case errors.As(err, &provider):
		if provider.StatusCode != 0 {
			res.ErrorMessage = fmt.Sprintf("provider %s returned status %d", provider.Provider, provider.StatusCode)
		} else {
			res.ErrorMessage = fmt.Sprintf("provider %s returned an invalid response", provider.Provider)
		}
		res.Details = provider.Body
		if res.Details == "" {
			res.Details = provider.Reason
		}
	case errors.As(err, &remote):
		res.ErrorMessage = "generation failed at provider"
		res.Details = remote.Details
	case errors.As(err, &timeout):
		res.ErrorMessage = "generation timed out"
		res.Details = timeout.Error()
	case errors.As(err, &cancelErr):
		res.ErrorMessage = "generation cancelled"
	}
	return res
}
