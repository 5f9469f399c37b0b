// Package observability provides structured logging and Prometheus metrics.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Loggers are slog JSON loggers; WithField/WithFields/WithError derive
// child loggers without mutating the parent. Request-scoped values
// (request id, actor id) travel on the context and FromContext folds them
// back into log fields.
//
// # Prometheus Metrics
//
// NewMetrics registers every gatekeeper_* metric on the given registry:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	http.Handle("/metrics", observability.Handler(registry))
//
// All metric fields are optional at call sites: components accept a nil
// *Metrics and skip recording.
package observability
