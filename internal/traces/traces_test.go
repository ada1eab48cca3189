package traces

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "test", slog.Default())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpanAndEnd(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, ok := StartSpan(context.Background(), "analysis.cycle", AnalysisPath("local"), RiskScore(82))
	End(ok, nil)

	_, failed := StartSpan(context.Background(), "audit.audit-contract", Operation("audit-contract"))
	End(failed, errors.New("status 500"))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "analysis.cycle", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Len(t, spans[0].Attributes(), 2)

	assert.Equal(t, "audit.audit-contract", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "status 500", spans[1].Status().Description)
}
