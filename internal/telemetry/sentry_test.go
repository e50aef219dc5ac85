package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_WithoutDSN(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestTraceSampler(t *testing.T) {
	sample := traceSampler(0.25)

	health := &sentry.Span{Name: "GET /health"}
	assert.Zero(t, sample(sentry.SamplingContext{Span: health}))

	root := &sentry.Span{Name: "POST /search"}
	assert.Equal(t, 0.25, sample(sentry.SamplingContext{Span: root}))

	child := &sentry.Span{Name: "RetrievalService.Search", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledTrue}
	assert.Equal(t, 1.0, sample(sentry.SamplingContext{Span: child}))

	dropped := &sentry.Span{Name: "RetrievalService.Search", ParentSpanID: sentry.SpanID{1}, Sampled: sentry.SampledFalse}
	assert.Zero(t, sample(sentry.SamplingContext{Span: dropped}))
}

func TestSpanStatusForHTTP(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, SpanStatusForHTTP(http.StatusOK))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, SpanStatusForHTTP(http.StatusBadRequest))
	assert.Equal(t, sentry.SpanStatusResourceExhausted, SpanStatusForHTTP(http.StatusRequestEntityTooLarge))
	assert.Equal(t, sentry.SpanStatusUnavailable, SpanStatusForHTTP(http.StatusServiceUnavailable))
	assert.Equal(t, sentry.SpanStatusUnavailable, SpanStatusForHTTP(http.StatusBadGateway))
	assert.Equal(t, sentry.SpanStatusInternalError, SpanStatusForHTTP(http.StatusInternalServerError))
}

func TestSpans_WithoutClient(t *testing.T) {
	ctx, req := StartRequest(context.Background(), httptest.NewRequest(http.MethodPost, "/retrieve", nil))
	ctx, span := StartSpan(ctx, "RetrievalService.Retrieve", SpanAttributes{Query: "cocoa", Limit: 5, Operation: "retrieve"})
	span.SetData("query_type", "Factual")
	span.SetTag("document", "cocoa.md")
	span.SetError(errors.New("embedding failed"))
	span.End()
	req.End()

	assert.NotNil(t, ctx)
	var nilSpan Span
	assert.NotPanics(t, func() {
		nilSpan.SetError(errors.New("ignored"))
		nilSpan.End()
	})
}
