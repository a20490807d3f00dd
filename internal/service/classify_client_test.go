package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inboxtriage/internal/model"
	"inboxtriage/pkg/circuitbreaker"
	"inboxtriage/pkg/trace"
)

func offerSummary() model.EmailSummary {
	return model.EmailSummary{
		Subject:    "Offer",
		Snippet:    "We'd like to hire you",
		Sender:     "hr@acme.com",
		SourceKind: model.SourceThreadRow,
	}
}

func TestClassify_Success(t *testing.T) {
	var got ClassifyRequest
	var gotTrace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotTrace = r.Header.Get(trace.HeaderName())
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"category":"JOB","confidence":0.93,"processed_at":"2024-01-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
	ctx := trace.WithContext(context.Background(), "trace-1")

	cat, err := c.Classify(ctx, offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryJob, cat)
	assert.Equal(t, ClassifyRequest{Subject: "Offer", Snippet: "We'd like to hire you", Sender: "hr@acme.com"}, got)
	assert.Equal(t, "trace-1", gotTrace)
}

func TestClassify_NormalizesCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"category":" read "}`))
	}))
	defer srv.Close()

	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
	cat, err := c.Classify(context.Background(), offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryRead, cat)
}

func TestClassify_EmptyCategoryIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"category":""}`))
	}))
	defer srv.Close()

	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
	cat, err := c.Classify(context.Background(), offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.Category(""), cat)
	assert.False(t, cat.IsLabelable())
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantReason string
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"boom"}`))
			},
			wantReason: ReasonHTTPStatus,
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
			wantReason: ReasonHTTPStatus,
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"category":`))
			},
			wantReason: ReasonDecode,
			wantStatus: http.StatusOK,
		},
		{
			name: "non json body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>oops</html>`))
			},
			wantReason: ReasonDecode,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
			cat, err := c.Classify(context.Background(), offerSummary())
			require.Error(t, err)
			assert.Empty(t, cat)
			assert.True(t, errors.Is(err, ErrClassification))

			var failure *ClassificationFailure
			require.True(t, errors.As(err, &failure))
			assert.Equal(t, tt.wantReason, failure.Reason)
			assert.Equal(t, tt.wantStatus, failure.StatusCode)
		})
	}
}

func TestClassify_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(url)})
	_, err := c.Classify(context.Background(), offerSummary())
	require.Error(t, err)

	var failure *ClassificationFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ReasonNetworkError, failure.Reason)
}

func TestClassify_TimeoutOnlyWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"category":"READ"}`))
	}))
	defer srv.Close()

	// 默认不设超时
	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
	cat, err := c.Classify(context.Background(), offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryRead, cat)

	c = NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL), Timeout: 20 * time.Millisecond})
	_, err = c.Classify(context.Background(), offerSummary())
	require.Error(t, err)

	var failure *ClassificationFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ReasonNetworkTimeout, failure.Reason)
}

func TestClassify_NeverRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL)})
	_, err := c.Classify(context.Background(), offerSummary())
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClassify_EndpointResolvedPerCall(t *testing.T) {
	first := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"category":"JOB"}`))
	}))
	defer first.Close()
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"category":"DELETE"}`))
	}))
	defer second.Close()

	endpoint := first.URL
	c := NewClassifyClient(ClassifyClientOptions{
		Endpoint: func(context.Context) string { return endpoint },
	})

	cat, err := c.Classify(context.Background(), offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryJob, cat)

	endpoint = second.URL
	cat, err = c.Classify(context.Background(), offerSummary())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryDelete, cat)
}

func TestClassify_NoEndpoint(t *testing.T) {
	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint("  ")})
	_, err := c.Classify(context.Background(), offerSummary())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrClassification)
}

func TestClassify_CircuitOpen(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		FailureThreshold: 2,
		OpenTimeout:      time.Hour,
	})
	c := NewClassifyClient(ClassifyClientOptions{Endpoint: StaticEndpoint(srv.URL), CircuitBreaker: cb})

	for i := 0; i < 2; i++ {
		_, err := c.Classify(context.Background(), offerSummary())
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.GetState())

	_, err := c.Classify(context.Background(), offerSummary())
	require.Error(t, err)
	var failure *ClassificationFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, ReasonCircuitOpen, failure.Reason)
	assert.ErrorIs(t, err, ErrClassification)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
