package log

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// stackHandler decorates records that carry an error under ErrAttrKey with
// the error's recorded stack under StacktraceAttrKey.
type stackHandler struct {
	next slog.Handler
}

func withStacktrace(next slog.Handler) slog.Handler {
	return &stackHandler{next: next}
}

func (h *stackHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.next.Enabled(ctx, l)
}

func (h *stackHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != ErrAttrKey {
			return true
		}
		err, _ = a.Value.Any().(error)
		return false
	})
	if stack := stackOf(err); stack != "" {
		r = r.Clone()
		r.AddAttrs(slog.String(StacktraceAttrKey, stack))
	}
	return h.next.Handle(ctx, r)
}

func (h *stackHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackHandler{next: h.next.WithAttrs(attrs)}
}

func (h *stackHandler) WithGroup(name string) slog.Handler {
	return &stackHandler{next: h.next.WithGroup(name)}
}

// stackOf returns the first safe detail of err, which for errors built with
// cockroachdb/errors is the formatted stack of the innermost WithStack.
func stackOf(err error) string {
	if err == nil {
		return ""
	}
	if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
		return details[0]
	}
	return ""
}
