package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"inboxtriage/internal/model"
	"inboxtriage/pkg/circuitbreaker"
	"inboxtriage/pkg/metrics"
	"inboxtriage/pkg/otel"
	"inboxtriage/pkg/trace"
	"inboxtriage/pkg/util"
)

// 失败原因
const (
	ReasonNetworkError   = util.ErrTypeNetworkError
	ReasonNetworkTimeout = util.ErrTypeNetworkTimeout
	ReasonHTTPStatus     = "http_status"
	ReasonDecode         = util.ErrTypeDecode
	ReasonCircuitOpen    = "circuit_open"
	ReasonCanceled       = util.ErrTypeContextCanceled
)

// ErrClassification is matched by every ClassificationFailure.
var ErrClassification = errors.New("classification failed")

// ClassificationFailure is one failed attempt. It is never retried here.
type ClassificationFailure struct {
	Reason     string
	StatusCode int
	Err        error
}

func (f *ClassificationFailure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("classification failed (%s %d): %v", f.Reason, f.StatusCode, f.Err)
	}
	return fmt.Sprintf("classification failed (%s): %v", f.Reason, f.Err)
}

func (f *ClassificationFailure) Unwrap() error { return f.Err }

func (f *ClassificationFailure) Is(target error) bool { return target == ErrClassification }

// EndpointResolver returns the endpoint for the next call.
type EndpointResolver func(ctx context.Context) string

// StaticEndpoint always resolves to url.
func StaticEndpoint(url string) EndpointResolver {
	return func(context.Context) string { return url }
}

// ClassifyRequest is the payload sent to the classifier.
type ClassifyRequest struct {
	Subject string `json:"subject"`
	Snippet string `json:"snippet"`
	Sender  string `json:"sender"`
}

// ClassifyResponse is the classifier's success body. Only Category is required.
type ClassifyResponse struct {
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence,omitempty"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

// ClassifyClientOptions configure a ClassifyClient. Timeout 0 means no client side
// timeout; CircuitBreaker nil disables fast-fail.
type ClassifyClientOptions struct {
	Endpoint       EndpointResolver
	Timeout        time.Duration
	CircuitBreaker *circuitbreaker.CircuitBreaker
	HTTPClient     *http.Client
}

type ClassifyClient struct {
	endpoint   EndpointResolver
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewClassifyClient(opts ClassifyClientOptions) *ClassifyClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &ClassifyClient{
		endpoint:   opts.Endpoint,
		httpClient: httpClient,
		cb:         opts.CircuitBreaker,
	}
}

// Classify sends the summary's subject, snippet and sender and returns the category.
// An empty category in a valid response is returned as "" (no label), not as an error.
func (c *ClassifyClient) Classify(ctx context.Context, summary model.EmailSummary) (model.Category, error) {
	ctx, span := otel.StartSpan(ctx, "triage.classify",
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(attribute.String("triage.source", summary.SourceKind.String())),
	)
	defer span.End()

	var category model.Category
	call := func() error {
		var err error
		category, err = c.do(ctx, summary)
		return err
	}

	var err error
	if c.cb != nil {
		err = c.cb.Execute(call)
	} else {
		err = call()
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		metrics.RecordClassifyCallLatency(ReasonCircuitOpen, 0)
		err = &ClassificationFailure{Reason: ReasonCircuitOpen, Err: err}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.String("triage.category", string(category)))
	return category, nil
}

func (c *ClassifyClient) do(ctx context.Context, summary model.EmailSummary) (model.Category, error) {
	endpoint := ""
	if c.endpoint != nil {
		endpoint = strings.TrimSpace(c.endpoint(ctx))
	}
	if endpoint == "" {
		return "", &ClassificationFailure{Reason: ReasonNetworkError, Err: errors.New("no classification endpoint configured")}
	}

	b, err := json.Marshal(ClassifyRequest{
		Subject: summary.Subject,
		Snippet: summary.Snippet,
		Sender:  summary.Sender,
	})
	if err != nil {
		return "", &ClassificationFailure{Reason: ReasonNetworkError, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", &ClassificationFailure{Reason: ReasonNetworkError, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	// 传播 trace_id
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}
	otel.InjectHTTP(ctx, req.Header)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		reason := util.ClassifyError(err)
		switch reason {
		case util.ErrTypeTimeout:
			reason = ReasonNetworkTimeout
		case ReasonNetworkTimeout, ReasonCanceled:
		default:
			reason = ReasonNetworkError
		}
		metrics.RecordClassifyCallLatency(reason, time.Since(start))
		return "", &ClassificationFailure{Reason: reason, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 读掉 body 以便复用连接
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		metrics.RecordClassifyCallLatency(fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return "", &ClassificationFailure{
			Reason:     ReasonHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("classifier returned %s", resp.Status),
		}
	}

	var body ClassifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		metrics.RecordClassifyCallLatency(ReasonDecode, time.Since(start))
		return "", &ClassificationFailure{Reason: ReasonDecode, StatusCode: resp.StatusCode, Err: err}
	}

	metrics.RecordClassifyCallLatency("success", time.Since(start))
	return model.ParseCategory(body.Category), nil
}
