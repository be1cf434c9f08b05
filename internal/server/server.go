package server

import (
	"context"
	_ "embed"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
	executor "github.com/hanpama/bookgraph/internal/executor"
	language "github.com/hanpama/bookgraph/internal/language"
	reqid "github.com/hanpama/bookgraph/internal/reqid"
	schema "github.com/hanpama/bookgraph/internal/schema"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed graphiql.html
var graphiqlPage []byte

// Handler is an http.Handler that serves a GraphQL endpoint.
// It parses and validates requests, runs the executor, and formats responses
// per the GraphQL over HTTP conventions.
type Handler struct {
	exec *executor.Executor
	opt  Options
	// validation is nil for schemas built without SDL; their requests are
	// only parsed.
	validation *language.SchemaDefinition
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// New creates a new GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	exec := executor.NewExecutor(runtime, sch)
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: exec, opt: op, validation: sch.Source}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	w.Header().Set(reqid.Header, rid)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		w.Header().Set("Allow", "GET, POST, OPTIONS")
		writeJSON(w, status, errorResponse("GraphQL only supports GET and POST requests."), h.opt.Pretty)
		return
	}

	// Serve GraphiQL IDE when enabled and the client expects HTML.
	if r.Method == http.MethodGet && h.opt.GraphiQL && acceptsHTML(r.Header.Get("Accept")) && r.URL.Query().Get("query") == "" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, msg, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != 0 {
		status = perr
		writeJSON(w, status, errorResponse(msg), h.opt.Pretty)
		return
	}

	if batch != nil {
		out := make([]wireResult, len(batch))
		for i := range batch {
			out[i], _ = h.executeOne(ctx, r.Method, batch[i])
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	var res wireResult
	res, status = h.executeOne(ctx, r.Method, req)
	if status == http.StatusMethodNotAllowed {
		w.Header().Set("Allow", "POST")
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

// executeOne validates and runs a single operation. The returned status
// applies when the operation is the whole request.
func (h *Handler) executeOne(ctx context.Context, method string, req GraphQLRequest) (wireResult, int) {
	start := time.Now()
	doc, errs := h.load(req.Query)
	opType := operationType(doc, req.OperationName)
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	finish := func(rejected bool, errs []error) {
		eventbus.Publish(ctx, events.GraphQLFinish{
			Query:         req.Query,
			OperationName: req.OperationName,
			OperationType: opType,
			Rejected:      rejected,
			Errors:        errs,
			Duration:      time.Since(start),
		})
	}

	if len(errs) > 0 {
		finish(true, toErrors(errs))
		return fromErrorList(errs), http.StatusBadRequest
	}
	if method == http.MethodGet && opType == string(language.Mutation) {
		res := errorResponse("Can only perform a mutation operation from a POST request.")
		finish(true, []error{&language.Error{Message: res.Errors[0].Message}})
		return res, http.StatusMethodNotAllowed
	}

	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	gerrs := make([]error, len(result.Errors))
	for i := range result.Errors {
		gerrs[i] = result.Errors[i]
	}
	finish(false, gerrs)
	return toWireResult(result), http.StatusOK
}

// load parses the query and, when the schema has an SDL source, validates it.
func (h *Handler) load(query string) (*language.QueryDocument, language.ErrorList) {
	if h.validation != nil {
		return language.LoadQuery(h.validation, query)
	}
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, language.ErrorList{language.AsError(err)}
	}
	return doc, nil
}

// operationType names the operation req would run, or "" when it cannot be
// determined.
func operationType(doc *language.QueryDocument, name string) string {
	if doc == nil {
		return ""
	}
	if name == "" {
		if len(doc.Operations) == 1 {
			return string(doc.Operations[0].Operation)
		}
		return ""
	}
	if op := doc.Operations.ForName(name); op != nil {
		return string(op.Operation)
	}
	return ""
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// parseRequest reads one request or a batch. On failure it returns the
// message and a non-zero HTTP status.
func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string, int) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "Must provide query string.", http.StatusBadRequest
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "Variables are invalid JSON.", http.StatusBadRequest
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, "", 0
	}

	// POST
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return GraphQLRequest{}, nil, "Unsupported Content-Type, expected application/json.", http.StatusUnsupportedMediaType
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return GraphQLRequest{}, nil, "Failed to read request body.", http.StatusBadRequest
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return GraphQLRequest{}, nil, "Request body too large.", http.StatusRequestEntityTooLarge
	}

	// Try array (batch)
	if len(body) > 0 && body[0] == '[' {
		var arr []GraphQLRequest
		if err := json.Unmarshal(body, &arr); err != nil {
			return GraphQLRequest{}, nil, "POST body sent invalid JSON.", http.StatusBadRequest
		}
		if len(arr) == 0 {
			return GraphQLRequest{}, nil, "Received an empty JSON array.", http.StatusBadRequest
		}
		return GraphQLRequest{}, arr, "", 0
	}
	var req GraphQLRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return GraphQLRequest{}, nil, "POST body sent invalid JSON.", http.StatusBadRequest
	}
	if req.Query == "" {
		return GraphQLRequest{}, nil, "Must provide query string.", http.StatusBadRequest
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, "", 0
}

// ------------------ Response formatting ------------------

type wireLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type wireError struct {
	Message    string         `json:"message"`
	Locations  []wireLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type wireResult struct {
	Data   any         `json:"data"`
	Errors []wireError `json:"errors,omitempty"`
}

func errorResponse(msg string) wireResult {
	return wireResult{Errors: []wireError{{Message: msg}}}
}

func fromErrorList(errs language.ErrorList) wireResult {
	out := wireResult{Errors: make([]wireError, len(errs))}
	for i, e := range errs {
		se := wireError{Message: e.Message, Extensions: e.Extensions}
		for _, l := range e.Locations {
			se.Locations = append(se.Locations, wireLocation{Line: l.Line, Column: l.Column})
		}
		for _, pe := range e.Path {
			se.Path = append(se.Path, pe)
		}
		out.Errors[i] = se
	}
	return out
}

func toErrors(errs language.ErrorList) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

func toWireResult(res *executor.ExecutionResult) wireResult {
	out := wireResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]wireError, len(res.Errors))
	for i, e := range res.Errors {
		se := wireError{Message: e.Message, Extensions: e.Extensions}
		for _, l := range e.Locations {
			se.Locations = append(se.Locations, wireLocation(l))
		}
		for _, pe := range e.Path {
			se.Path = append(se.Path, pe)
		}
		out.Errors[i] = se
	}
	// data is kept alongside errors; it may be partial
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := slices.Contains(opts.AllowedOrigins, "*")
	if !wildcard && !slices.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
