package metrics

import "go.uber.org/fx"

// Module provides the MetricRecorder to Fx. The CLI runs to completion and
// exits, so the Prometheus registry is exposed for scraping only when a
// long-lived deployment mounts it; the recorder itself is always wired.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewPrometheusRecorder,
			fx.As(new(MetricRecorder)),
		),
	),
)
