package ctxlogger

import (
	"context"
	"log/slog"
)

type ctxKey int

const slogAttrsKey ctxKey = iota

// AppendCtx returns a context carrying attr in addition to any attrs
// already attached; ContextHandler emits them on every record logged with
// that context.
func AppendCtx(ctx context.Context, attr slog.Attr) context.Context {
	attrs, _ := ctx.Value(slogAttrsKey).([]slog.Attr)
	attrs = append(attrs[:len(attrs):len(attrs)], attr)

	return context.WithValue(ctx, slogAttrsKey, attrs)
}

type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(slogAttrsKey).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}

	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}
