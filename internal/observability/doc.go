// Package observability provides structured logging and distributed tracing
// for the access gate. Logging is backed by zap behind a small Logger
// interface so packages can accept a nop logger in tests; tracing is
// OpenTelemetry with an optional OTLP/gRPC exporter.
package observability
