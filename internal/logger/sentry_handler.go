package logger

import (
	"context"
	"log/slog"
	"slices"

	"github.com/getsentry/sentry-go"
)

// Attributes with these keys become Sentry tags on reported errors.
var tagKeys = []string{"pass_id", "group_id", "conversation_id", "ballot_id", "event"}

// SentryHandler wraps an slog.Handler and reports errors to Sentry
type SentryHandler struct {
	handler slog.Handler
	attrs   []slog.Attr
}

func NewSentryHandler(handler slog.Handler) *SentryHandler {
	return &SentryHandler{handler: handler}
}

func (h *SentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sends the "error" attribute of Error level records to Sentry
// before passing the record on.
func (h *SentryHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		var captured error
		tags := make(map[string]string)
		collect := func(a slog.Attr) bool {
			if a.Key == "error" {
				if err, ok := a.Value.Any().(error); ok {
					captured = err
				}
			} else if slices.Contains(tagKeys, a.Key) {
				tags[a.Key] = a.Value.String()
			}
			return true
		}
		for _, a := range h.attrs {
			collect(a)
		}
		r.Attrs(collect)

		if captured != nil {
			report(ctx, r.Message, captured, tags)
		}
	}
	return h.handler.Handle(ctx, r)
}

func report(ctx context.Context, msg string, err error, tags map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetExtra("message", msg)
		hub.CaptureException(err)
	})
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SentryHandler{
		handler: h.handler.WithAttrs(attrs),
		attrs:   append(slices.Clip(h.attrs), attrs...),
	}
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	return &SentryHandler{handler: h.handler.WithGroup(name), attrs: h.attrs}
}
