// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/gorilla/mux"
	"github.com/okian/clickrank/internal/adapters/http/identity"
	"github.com/okian/clickrank/internal/domain/fault"
	"github.com/okian/clickrank/internal/domain/types"
	"github.com/okian/clickrank/pkg/logger"
)

// VisitorDependencies are the operations available to any caller.
type VisitorDependencies interface {
	Ping(ctx context.Context) error
	Profile(ctx context.Context, id string) (types.Profile, error)
	Name(ctx context.Context, id string) (string, error)
	SetName(ctx context.Context, id, raw string) (string, error)
	Count(ctx context.Context) (int64, error)
	Increment(ctx context.Context, id string) (int64, error)
	Leaders(ctx context.Context) ([]types.Leader, error)
}

// AdminDependencies are the operations behind the admin flag.
type AdminDependencies interface {
	RequireAdmin(ctx context.Context, id string) error
	Stats(ctx context.Context) (types.Stats, error)
	AdminSet(ctx context.Context, value float64) (int64, error)
	AdminAdd(ctx context.Context, delta float64) (int64, error)
	UserDelta(ctx context.Context, id string, delta float64) (int64, error)
	Ban(ctx context.Context, id string, banned, purge bool) (bool, error)
	SetAdmin(ctx context.Context, id string, admin bool) error
	Reset(ctx context.Context, scope types.ResetScope) error
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	VisitorDependencies
	AdminDependencies
}

// access says what a route requires of the caller.
type access int

const (
	accessNone     access = iota // no identity
	accessIdentity               // identity resolved, cookie minted if absent
	accessAdmin                  // identity plus admin flag
)

// route is one path with its per-method handlers.
type route struct {
	path     string
	endpoint string
	access   access
	methods  map[string]http.HandlerFunc
}

func (rt route) allowed() []string {
	out := make([]string, 0, len(rt.methods))
	for m := range rt.methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	ids      *identity.Resolver
	hub      *StreamHub
	basePath string
	logger   logger.Logger

	visitor *VisitorHandler
	admin   *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	if s.ids == nil {
		s.ids = identity.NewResolver()
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	s.basePath = strings.TrimRight(s.basePath, "/")
	s.visitor = NewVisitorHandler(deps, s.logger)
	s.admin = NewAdminHandler(deps, s.logger)
	return s
}

func (s *Server) routes() []route {
	v, a := s.visitor, s.admin
	rs := []route{
		{path: "/", endpoint: "root", methods: map[string]http.HandlerFunc{http.MethodGet: v.HandleRoot}},
		{path: "/ping", endpoint: "ping", methods: map[string]http.HandlerFunc{http.MethodGet: v.HandlePing}},
		{path: "/me", endpoint: "me", access: accessIdentity, methods: map[string]http.HandlerFunc{http.MethodGet: v.HandleMe}},
		{path: "/name", endpoint: "name", access: accessIdentity, methods: map[string]http.HandlerFunc{
			http.MethodGet:  v.HandleGetName,
			http.MethodPost: v.HandleSetName,
		}},
		{path: "/count", endpoint: "count", access: accessIdentity, methods: map[string]http.HandlerFunc{http.MethodGet: v.HandleCount}},
		{path: "/increment", endpoint: "increment", access: accessIdentity, methods: map[string]http.HandlerFunc{http.MethodPost: v.HandleIncrement}},
		{path: "/leaderboard", endpoint: "leaderboard", access: accessIdentity, methods: map[string]http.HandlerFunc{http.MethodGet: v.HandleLeaderboard}},
		{path: "/admin/stats", endpoint: "admin_stats", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodGet: a.HandleStats}},
		{path: "/admin/set-count", endpoint: "admin_set_count", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleSetCount}},
		{path: "/admin/add-count", endpoint: "admin_add_count", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleAddCount}},
		{path: "/admin/user-delta", endpoint: "admin_user_delta", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleUserDelta}},
		{path: "/admin/ban", endpoint: "admin_ban", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleBan}},
		{path: "/admin/admin", endpoint: "admin_admin", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleSetAdmin}},
		{path: "/admin/reset", endpoint: "admin_reset", access: accessAdmin, methods: map[string]http.HandlerFunc{http.MethodPost: a.HandleReset}},
	}
	if s.hub != nil {
		rs = append(rs,
			route{path: "/events", endpoint: "events", methods: map[string]http.HandlerFunc{http.MethodGet: s.hub.HandleEvents}},
			route{path: "/ws", endpoint: "ws", methods: map[string]http.HandlerFunc{http.MethodGet: s.hub.HandleWebSocket}},
		)
	}
	return rs
}

// Register attaches all API routes under the configured base path to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	if r == nil {
		panic("router is nil")
	}
	for _, rt := range s.routes() {
		r.Handle(s.fullPath(rt.path), s.wrap(rt))
	}
	r.NotFoundHandler = RequestID(Recover(MetricsMiddleware(NoStore(s.handleNotFound), "not_found")))
}

func (s *Server) fullPath(p string) string {
	if p == "/" && s.basePath != "" {
		return s.basePath
	}
	return s.basePath + p
}

// Handler returns a router serving only the API, with trailing slashes
// ignored.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	s.Register(context.Background(), r)
	return TrimTrailingSlash(r)
}

// wrap builds the middleware chain for rt. Admin routes resolve identity and
// pass the admin gate before the method check, so a non-admin only ever sees
// 403 there; other routes check the method first.
func (s *Server) wrap(rt route) http.Handler {
	allowed := rt.allowed()
	h := func(w http.ResponseWriter, r *http.Request) {
		if rt.access == accessAdmin {
			r = s.withIdentity(w, r)
			if err := s.deps.RequireAdmin(r.Context(), ClientID(r.Context())); err != nil {
				respondError(s.logger, w, r, err)
				return
			}
		}
		next, ok := rt.methods[r.Method]
		if !ok {
			writeMethodNotAllowed(w, allowed)
			return
		}
		if rt.access == accessIdentity {
			r = s.withIdentity(w, r)
		}
		next(w, r)
	}
	chain := http.HandlerFunc(h)
	if rt.endpoint != "events" && rt.endpoint != "ws" {
		chain = NoStore(chain)
	}
	return RequestID(Recover(MetricsMiddleware(chain, rt.endpoint)))
}

func (s *Server) withIdentity(w http.ResponseWriter, r *http.Request) *http.Request {
	id := s.ids.Resolve(w, r)
	return r.WithContext(withClientID(r.Context(), id))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	route := strings.Trim(strings.TrimPrefix(r.URL.Path, s.basePath), "/")
	writeJSON(w, http.StatusNotFound, notFoundResponse{
		errorResponse: errorResponse{Error: "Not Found", Code: codeNotFound},
		Route:         route,
	})
}

// respondError logs server-side faults and writes the error response.
func respondError(l logger.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if statusFor(err) >= http.StatusInternalServerError {
		l.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("method", r.Method),
			logger.Error(err),
		)
	}
	writeError(w, err)
}

type clientIDKey struct{}

func withClientID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, clientIDKey{}, id)
}

// ClientID returns the caller identity resolved for this request, "" if the
// route does not resolve one.
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey{}).(string)
	return id
}

// Error codes carried in JSON error bodies.
const (
	codeValidation       = "validation_error"
	codeForbidden        = "forbidden"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeUpstream         = "upstream_error"
	codeInternal         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type notFoundResponse struct {
	errorResponse
	Route string `json:"route"`
}

type methodNotAllowedResponse struct {
	errorResponse
	Allowed []string `json:"allowed"`
}

func statusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.ErrValidation:
		return http.StatusBadRequest
	case fault.ErrForbidden:
		return http.StatusForbidden
	case fault.ErrNotFound:
		return http.StatusNotFound
	case fault.ErrMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	switch fault.KindOf(err) {
	case fault.ErrValidation:
		return codeValidation
	case fault.ErrForbidden:
		return codeForbidden
	case fault.ErrNotFound:
		return codeNotFound
	case fault.ErrMethodNotAllowed:
		return codeMethodNotAllowed
	case fault.ErrUpstream:
		return codeUpstream
	default:
		return codeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and writes its public message, falling
// back to the status text.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := fault.Message(err)
	if msg == "" {
		msg = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: codeFor(err)})
}

func writeMethodNotAllowed(w http.ResponseWriter, allowed []string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, methodNotAllowedResponse{
		errorResponse: errorResponse{Error: "Method Not Allowed", Code: codeMethodNotAllowed},
		Allowed:       allowed,
	})
}
