package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
	reqid "github.com/hanpama/bookgraph/internal/reqid"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer

	logger, err := New(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "shown", rec["msg"])
	require.Equal(t, "WARN", rec["level"])

	_, err = New(&buf, "loud", "text")
	require.Error(t, err)
	_, err = New(&buf, "info", "xml")
	require.Error(t, err)

	buf.Reset()
	logger, err = New(&buf, "DEBUG", "text")
	require.NoError(t, err)
	logger.Debug("visible")
	require.Contains(t, buf.String(), "msg=visible")
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestSubscribe(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var buf bytes.Buffer
	logger, err := New(&buf, "info", "json")
	require.NoError(t, err)
	unsubscribe := Subscribe(logger)

	ctx, _ := reqid.WithID(context.Background(), "req-7")
	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(ctx, events.RecordAdded{Kind: "book", ID: 9, Name: "The Silmarillion"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "mutation"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Rejected: true, Errors: []error{errors.New("bad")}})
	eventbus.Publish(ctx, events.ResolverBatch{ObjectType: "Book", Field: "author", Size: 2, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: http.StatusOK, Duration: time.Millisecond})

	recs := decodeLines(t, &buf)
	require.Len(t, recs, 4)

	require.Equal(t, "record added", recs[0]["msg"])
	require.Equal(t, "book", recs[0]["kind"])
	require.Equal(t, float64(9), recs[0]["id"])
	require.Equal(t, "req-7", recs[0]["request_id"])

	require.Equal(t, "graphql operation failed", recs[1]["msg"])
	require.Equal(t, []any{"bad"}, recs[1]["errors"])
	require.Equal(t, true, recs[1]["rejected"])

	require.Equal(t, "resolver batch failed", recs[2]["msg"])
	require.Equal(t, "Book.author", recs[2]["field"])

	require.Equal(t, "http request", recs[3]["msg"])
	require.Equal(t, "POST", recs[3]["method"])
	require.Equal(t, "/graphql", recs[3]["path"])
	require.Equal(t, float64(200), recs[3]["status"])

	unsubscribe()
	buf.Reset()
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: http.StatusOK})
	require.Empty(t, buf.String())
}
