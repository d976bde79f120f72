package logger

import (
	"context"
	"log/slog"
)

// ContextExtractor derives an attribute from a context at log time.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type scopeKey struct{}

// ContextWith returns a context carrying attrs. Loggers built by New add them
// to every record logged with that context, after any attrs set by outer
// scopes.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	attrs = nonEmpty(attrs)
	if len(attrs) == 0 {
		return ctx
	}
	parent := AttrsFromContext(ctx)
	scoped := make([]slog.Attr, 0, len(parent)+len(attrs))
	scoped = append(scoped, parent...)
	scoped = append(scoped, attrs...)
	return context.WithValue(ctx, scopeKey{}, scoped)
}

// AttrsFromContext returns the attrs stored by ContextWith.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(scopeKey{}).([]slog.Attr)
	return attrs
}

func nonEmpty(attrs []slog.Attr) []slog.Attr {
	out := attrs[:0:0]
	for _, a := range attrs {
		if !a.Equal(slog.Attr{}) {
			out = append(out, a)
		}
	}
	return out
}

// contextHandler adds scoped and extracted attributes to each record before
// passing it on. Extraction happens per record so values are never stale.
type contextHandler struct {
	next       slog.Handler
	extractors []ContextExtractor
}

func newContextHandler(next slog.Handler, extractors []ContextExtractor) *contextHandler {
	return &contextHandler{next: next, extractors: extractors}
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if scoped := AttrsFromContext(ctx); len(scoped) > 0 {
		rec.AddAttrs(scoped...)
	}
	for _, ex := range h.extractors {
		if attr, ok := ex(ctx); ok {
			rec.AddAttrs(attr)
		}
	}
	return h.next.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newContextHandler(h.next.WithAttrs(attrs), h.extractors)
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return newContextHandler(h.next.WithGroup(name), h.extractors)
}
