// Package slogobs provides an [observability.Observer] implementation backed
// by Go's standard library log/slog package. It supports structured span
// events and levelled logging with compact text or JSON output. The main
// entry point is [New]; output and level can be tuned with [WithLevel],
// [WithJSON], [WithOutput], and [WithLogger].
package slogobs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/halcyonai/halcyon/observability"
)

// LevelTrace sits below slog.LevelDebug; slog has no native trace level.
const LevelTrace = slog.LevelDebug - 4

// Option configures the observer returned by New.
type Option func(*options)

type options struct {
	level  slog.Level
	json   bool
	output io.Writer
	logger *slog.Logger
}

// WithLevel sets the minimum level emitted. Records below it are dropped.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithJSON switches output to slog's JSON handler (for log aggregation).
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithOutput redirects log output. Defaults to os.Stderr.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithLogger uses an existing slog.Logger instead of constructing one.
// WithLevel, WithJSON, and WithOutput are ignored when a logger is supplied.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// LevelFromEnv reads the log level from HALCYON_LOG_LEVEL, falling back to
// LOG_LEVEL, then to slog.LevelInfo. Recognized values: trace, debug, info,
// warn, error (case-insensitive).
func LevelFromEnv() slog.Level {
	raw := os.Getenv("HALCYON_LOG_LEVEL")
	if raw == "" {
		raw = os.Getenv("LOG_LEVEL")
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Observer implements observability.Observer on top of log/slog. Spans are
// rendered as log records: one at start, one per event, one at end with the
// span duration.
type Observer struct {
	logger *slog.Logger
}

// New creates a slog-backed observer.
func New(opts ...Option) *Observer {
	configured := options{
		level:  LevelFromEnv(),
		output: os.Stderr,
	}
	for _, opt := range opts {
		opt(&configured)
	}

	logger := configured.logger
	if logger == nil {
		handlerOpts := &slog.HandlerOptions{Level: configured.level}
		var handler slog.Handler
		if configured.json {
			handler = slog.NewJSONHandler(configured.output, handlerOpts)
		} else {
			handler = slog.NewTextHandler(configured.output, handlerOpts)
		}
		logger = slog.New(handler)
	}

	return &Observer{logger: logger}
}

// StartSpan implements observability.Tracer. The returned context carries the
// span so nested calls attach their events to it.
func (o *Observer) StartSpan(ctx context.Context, name string, attrs ...observability.Attribute) (context.Context, observability.Span) {
	span := &slogSpan{
		observer: o,
		name:     name,
		started:  time.Now(),
		attrs:    attrs,
	}
	o.log(ctx, slog.LevelDebug, "span started", append([]observability.Attribute{observability.String("span", name)}, attrs...)...)
	return observability.ContextWithSpan(ctx, span), span
}

// Trace implements observability.Logger at the trace level.
func (o *Observer) Trace(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, LevelTrace, msg, attrs...)
}

// Debug implements observability.Logger.
func (o *Observer) Debug(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelDebug, msg, attrs...)
}

// Info implements observability.Logger.
func (o *Observer) Info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelInfo, msg, attrs...)
}

// Warn implements observability.Logger.
func (o *Observer) Warn(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelWarn, msg, attrs...)
}

// Error implements observability.Logger.
func (o *Observer) Error(ctx context.Context, msg string, attrs ...observability.Attribute) {
	o.log(ctx, slog.LevelError, msg, attrs...)
}

func (o *Observer) log(ctx context.Context, level slog.Level, msg string, attrs ...observability.Attribute) {
	if ctx == nil {
		ctx = context.Background()
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, slog.Any(attr.Key, attr.Value))
	}
	o.logger.Log(ctx, level, msg, args...)
}

// slogSpan renders span lifecycle as log records.
type slogSpan struct {
	observer *Observer
	name     string
	started  time.Time
	attrs    []observability.Attribute
}

func (s *slogSpan) End() {
	attrs := append([]observability.Attribute{
		observability.String("span", s.name),
		observability.Duration(observability.AttrDuration, time.Since(s.started)),
	}, s.attrs...)
	s.observer.log(context.Background(), slog.LevelDebug, "span ended", attrs...)
}

func (s *slogSpan) SetAttributes(attrs ...observability.Attribute) {
	s.attrs = append(s.attrs, attrs...)
}

func (s *slogSpan) RecordError(err error) {
	if err == nil {
		return
	}
	s.observer.log(context.Background(), slog.LevelError, "span error",
		observability.String("span", s.name),
		observability.Error(err),
	)
}

func (s *slogSpan) AddEvent(name string, attrs ...observability.Attribute) {
	eventAttrs := append([]observability.Attribute{observability.String("span", s.name)}, attrs...)
	s.observer.log(context.Background(), slog.LevelDebug, name, eventAttrs...)
}
