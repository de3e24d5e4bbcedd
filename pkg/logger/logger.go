package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/getsentry/sentry-go"
)

// New builds the process logger: text output in development, JSON elsewhere.
// Records at error level are also sent to Sentry once sentry.Init has run.
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(Wrap(handler, sentry.CurrentHub()))
}

// ParseLevel maps LOG_LEVEL values to slog levels. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type sentryHandler struct {
	inner slog.Handler
	hub   *sentry.Hub
	// attrs are already qualified with the groups open when they were added
	attrs  []slog.Attr
	prefix string
}

// Wrap returns a handler that passes every record to inner and reports
// error records to hub. The "error" attribute, when it holds an error, is
// captured as an exception; otherwise the message is captured.
func Wrap(inner slog.Handler, hub *sentry.Hub) slog.Handler {
	return &sentryHandler{inner: inner, hub: hub}
}

func (h *sentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError && h.hub != nil && h.hub.Client() != nil {
		h.capture(r)
	}
	return h.inner.Handle(ctx, r)
}

func (h *sentryHandler) capture(r slog.Record) {
	var captured error
	extra := map[string]any{}

	var collect func(prefix string, a slog.Attr)
	collect = func(prefix string, a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Value.Kind() == slog.KindGroup {
			if a.Key != "" {
				prefix += a.Key + "."
			}
			for _, ga := range a.Value.Group() {
				collect(prefix, ga)
			}
			return
		}
		if err, ok := a.Value.Any().(error); ok && a.Key == "error" && captured == nil {
			captured = err
			return
		}
		extra[prefix+a.Key] = a.Value.String()
	}
	for _, a := range h.attrs {
		collect("", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(h.prefix, a)
		return true
	})

	h.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetExtras(extra)
		if captured == nil {
			h.hub.CaptureMessage(r.Message)
			return
		}
		h.hub.CaptureException(errors.Join(errors.New(r.Message), captured))
	})
}

func (h *sentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	qualified := append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" && a.Key != "" {
			a.Key = h.prefix + a.Key
		}
		qualified = append(qualified, a)
	}
	return &sentryHandler{
		inner:  h.inner.WithAttrs(attrs),
		hub:    h.hub,
		attrs:  qualified,
		prefix: h.prefix,
	}
}

func (h *sentryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sentryHandler{
		inner:  h.inner.WithGroup(name),
		hub:    h.hub,
		attrs:  h.attrs,
		prefix: h.prefix + name + ".",
	}
}
