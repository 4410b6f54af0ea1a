package agent

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/angi/pkg/model/provider"
	"github.com/docker/angi/pkg/model/provider/options"
)

type Opt func(a *Agent)

// WithProvider injects the model adapter instead of building one from the
// configuration.
func WithProvider(p provider.Provider) Opt {
	return func(a *Agent) {
		a.provider = p
	}
}

// WithModelOptions is forwarded to the provider built from the configuration.
func WithModelOptions(opts ...options.Opt) Opt {
	return func(a *Agent) {
		a.modelOptions = append(a.modelOptions, opts...)
	}
}

func WithTracer(tracer trace.Tracer) Opt {
	return func(a *Agent) {
		a.tracer = tracer
	}
}
