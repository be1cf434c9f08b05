// Package logging builds the process logger and turns bus events into log
// lines: one access line per HTTP request and one line per catalog record.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
	reqid "github.com/hanpama/bookgraph/internal/reqid"
)

// New returns a logger writing to w. format is "text" or "json"; level is
// one of debug, info, warn or error.
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
}

// Subscribe writes request, operation and catalog events from the global
// bus to logger.
func Subscribe(logger *slog.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			level := slog.LevelInfo
			if e.Status >= 500 {
				level = slog.LevelError
			}
			logger.LogAttrs(ctx, level, "http request",
				requestID(ctx),
				slog.String("method", e.Request.Method),
				slog.String("path", e.Request.URL.Path),
				slog.Int("status", e.Status),
				slog.Duration("duration", e.Duration),
			)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			if len(e.Errors) == 0 {
				logger.LogAttrs(ctx, slog.LevelDebug, "graphql operation",
					requestID(ctx),
					slog.String("operation", e.OperationName),
					slog.String("type", e.OperationType),
					slog.Duration("duration", e.Duration),
				)
				return
			}
			msgs := make([]string, len(e.Errors))
			for i, err := range e.Errors {
				msgs[i] = err.Error()
			}
			logger.LogAttrs(ctx, slog.LevelWarn, "graphql operation failed",
				requestID(ctx),
				slog.String("operation", e.OperationName),
				slog.String("type", e.OperationType),
				slog.Bool("rejected", e.Rejected),
				slog.Any("errors", msgs),
			)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.ResolverBatch) {
			if e.Err == nil {
				return
			}
			logger.LogAttrs(ctx, slog.LevelError, "resolver batch failed",
				requestID(ctx),
				slog.String("field", e.ObjectType+"."+e.Field),
				slog.Int("size", e.Size),
				slog.String("error", e.Err.Error()),
			)
		}),

		eventbus.Subscribe(func(ctx context.Context, e events.RecordAdded) {
			logger.LogAttrs(ctx, slog.LevelInfo, "record added",
				requestID(ctx),
				slog.String("kind", e.Kind),
				slog.Int("id", e.ID),
				slog.String("name", e.Name),
			)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) slog.Attr {
	id, _ := reqid.FromContext(ctx)
	return slog.String("request_id", id)
}
