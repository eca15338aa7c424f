package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tryon/internal/tryon"
)

func TestObserveSubmissionSplitsModes(t *testing.T) {
	c := NewCollector("test")

	c.ObserveSubmission("fashn", false)
	c.ObserveSubmission("fashn", false)
	c.ObserveSubmission("custom", true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.submissionsTotal.WithLabelValues("fashn", "async")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissionsTotal.WithLabelValues("custom", "sync")))
}

func TestObserveResultClassifiesErrors(t *testing.T) {
	c := NewCollector("test")

	c.ObserveResult("fashn", nil, time.Second)
	c.ObserveResult("fashn", &tryon.PollTimeout{Attempts: 30}, 300*time.Second)
	c.ObserveResult("fashn", fmt.Errorf("wrapped: %w", &tryon.ProviderError{StatusCode: 401}), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.resultsTotal.WithLabelValues("fashn", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resultsTotal.WithLabelValues("fashn", "poll_timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resultsTotal.WithLabelValues("fashn", "provider_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.generationDuration))
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&tryon.ConfigurationError{Reason: "x"}, "configuration_error"},
		{&tryon.UnknownProvider{Name: "x"}, "configuration_error"},
		{&tryon.TransportError{URL: "u"}, "transport_error"},
		{&tryon.RemoteJobFailed{JobID: "j"}, "remote_job_failed"},
		{&tryon.Cancelled{Err: context.Canceled}, "cancelled"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Outcome(tc.err))
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("tryon_test")
	c.ObservePoll("replicate")
	c.RecordHTTPRequest(http.MethodPost, "/v1/tryon", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `tryon_test_tryon_status_polls_total{provider="replicate"} 1`), body)
	assert.True(t, strings.Contains(body, `tryon_test_http_requests_total{method="POST",route="/v1/tryon",status="200"} 1`), body)
}
