package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Init(ctx, Config{ServiceName: "story-test", ServiceVersion: "v0", Writer: &buf})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(ctx, "unit.span")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name":"unit.span"`)
	assert.Contains(t, buf.String(), "story-test")
}

func TestInit_DefaultName(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Init(ctx, Config{Writer: &buf, PrettyPrint: true})
	require.NoError(t, err)

	_, span := otel.Tracer("telemetry_test").Start(ctx, "pretty.span")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), `"Name": "pretty.span"`)
	assert.Contains(t, buf.String(), `"Value": "story"`)
}
