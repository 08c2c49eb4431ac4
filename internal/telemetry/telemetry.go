// Package telemetry wires the OpenTelemetry tracer used around planner
// and HTTP operations.
package telemetry

import (
	"context"
	"io"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/bighogz/Kirana-Predict"

// Setup installs a global tracer provider. When toStdout is set spans
// are pretty-printed to w (stdout when nil); otherwise they are sampled
// but never exported. The returned func flushes and stops the provider.
func Setup(toStdout bool, w io.Writer) (trace.Tracer, func(context.Context) error, error) {
	var opts []sdktrace.TracerProviderOption
	if toStdout {
		if w == nil {
			w = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, nil, errors.Wrap(err, "telemetry stdouttrace")
		}
		opts = append(opts, sdktrace.WithSyncer(exp))
	}
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Tracer(TracerName), tp.Shutdown, nil
}

// Tracer returns the tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
