package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
)

type fixedSize struct{ authors, books int }

func (f fixedSize) Len() (int, int) { return f.authors, f.books }

func TestEventsUpdateCollectors(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	m := New(prometheus.NewRegistry())
	unsubscribe := m.Subscribe()
	defer unsubscribe()

	ctx := context.Background()
	r := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 200, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: 400})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query"})
	eventbus.Publish(ctx, events.GraphQLFinish{OperationType: "query", Errors: []error{errors.New("x")}})
	eventbus.Publish(ctx, events.GraphQLFinish{Rejected: true, Errors: []error{errors.New("x")}})
	eventbus.Publish(ctx, events.ResolverBatch{ObjectType: "Book", Field: "author", Size: 8})
	eventbus.Publish(ctx, events.ResolverBatch{ObjectType: "Book", Field: "author", Size: 1, Err: errors.New("boom")})
	eventbus.Publish(ctx, events.RecordAdded{Kind: "author", ID: 4})

	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("POST", "400")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("query", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("query", "error")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("unknown", "rejected")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.BatchErrors.WithLabelValues("Book.author")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RecordsAdded.WithLabelValues("author")))
	require.Equal(t, 1, testutil.CollectAndCount(m.BatchSize))
}

func TestCatalogGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterCatalog(reg, fixedSize{authors: 3, books: 8}))

	want := `
# HELP bookgraph_catalog_authors Authors currently in the catalog.
# TYPE bookgraph_catalog_authors gauge
bookgraph_catalog_authors 3
# HELP bookgraph_catalog_books Books currently in the catalog.
# TYPE bookgraph_catalog_books gauge
bookgraph_catalog_books 8
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(want), "bookgraph_catalog_authors", "bookgraph_catalog_books"))

	require.Error(t, RegisterCatalog(reg, fixedSize{}), "duplicate registration")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterCatalog(reg, fixedSize{authors: 1, books: 2}))

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "bookgraph_catalog_books 2")
}
