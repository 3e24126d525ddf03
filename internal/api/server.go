// Package api serves the rutting dashboard: the login flow, the dashboard
// page, the JSON endpoints that drive it and the chart and CSV downloads.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"github.com/banshee-data/rutting.report/internal/config"
	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/monitoring"
	"github.com/banshee-data/rutting.report/internal/render"
	"github.com/banshee-data/rutting.report/internal/session"
	"github.com/banshee-data/rutting.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

var logf = monitoring.Prefixed("api")

// Verifier checks a username and password. *auth.Authenticator satisfies
// it.
type Verifier interface {
	Verify(ctx context.Context, username, password string) error
}

type Server struct {
	cfg      *config.DashboardConfig
	loader   *grid.Loader
	filters  *grid.Cache
	sessions *session.Store
	auth     Verifier
	charts   render.ChartOptions
	ping     func(ctx context.Context) error
}

func NewServer(cfg *config.DashboardConfig, loader *grid.Loader, sessions *session.Store, auth Verifier) *Server {
	return &Server{
		cfg:      cfg,
		loader:   loader,
		filters:  grid.NewCache(cfg.GetFilterCacheSize()),
		sessions: sessions,
		auth:     auth,
		charts: render.ChartOptions{
			Theme:      cfg.GetChartTheme(),
			AssetsHost: cfg.GetEchartsAssetsHost(),
		},
	}
}

// SetHealthCheck installs the check /health runs, normally a database
// ping.
func (s *Server) SetHealthCheck(ping func(ctx context.Context) error) {
	s.ping = ping
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// sessionHandler is a handler that runs with the caller's session.
type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

// requireSession resolves the session cookie. Without one, browser pages
// are redirected to the login form and machine endpoints get a 401.
func (s *Server) requireSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.sessions.FromRequest(r)
		if err != nil {
			if wantsJSON(r) {
				httputil.Unauthorized(w)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		h(w, r, sess)
	}
}

// wantsJSON reports whether r is for an endpoint that answers with data
// rather than a page.
func wantsJSON(r *http.Request) bool {
	for _, prefix := range []string{"/api/", "/charts/", "/plots/"} {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	limitLogin := httprate.LimitByIP(s.cfg.GetLoginRateLimit(), time.Minute)

	mux.HandleFunc("GET /login", s.showLogin)
	mux.Handle("POST /login", limitLogin(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /{$}", s.requireSession(s.showDashboard))
	mux.HandleFunc("POST /api/filter", s.requireSession(s.updateFilter))
	mux.HandleFunc("GET /api/grid", s.requireSession(s.showGrid))
	mux.HandleFunc("GET /api/config", s.requireSession(s.showConfig))
	mux.HandleFunc("GET /api/profile.csv", s.requireSession(s.downloadProfileCSV))
	mux.HandleFunc("GET /api/grid.csv", s.requireSession(s.downloadGridCSV))
	mux.HandleFunc("GET /charts/surface", s.requireSession(s.surfaceChart))
	mux.HandleFunc("GET /charts/profile", s.requireSession(s.profileChart))
	mux.HandleFunc("GET /plots/profile.png", s.requireSession(s.profilePNG))
	return mux
}

// Handler returns the routes wrapped in the access log.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.ServeMux())
}

// healthResponse is the body of /health.
type healthResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
	Error   string       `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: version.Get()}
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	httputil.WriteJSONOK(w, resp)
}

// configResponse is the body of /api/config.
type configResponse struct {
	Version        version.Info  `json:"version"`
	Source         string        `json:"source"`
	Listen         string        `json:"listen"`
	SamplesTable   string        `json:"samples_table"`
	SessionTTL     string        `json:"session_ttl"`
	DefaultParams  grid.Params   `json:"default_params"`
	SurfaceMax     int           `json:"surface_max_points"`
	ChartTheme     string        `json:"chart_theme"`
	CachedFiltered int           `json:"cached_filtered"`
	Session        session.State `json:"session"`
	Username       string        `json:"username"`
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	httputil.WriteJSONOK(w, configResponse{
		Version:        version.Get(),
		Source:         s.loader.Source().Name(),
		Listen:         s.cfg.GetListen(),
		SamplesTable:   s.cfg.GetSamplesTable(),
		SessionTTL:     s.cfg.GetSessionTTL().String(),
		DefaultParams:  s.cfg.DefaultParams(),
		SurfaceMax:     s.cfg.GetSurfaceMaxPoints(),
		ChartTheme:     s.cfg.GetChartTheme(),
		CachedFiltered: s.filters.Len(),
		Session:        sess.State(),
		Username:       sess.Username,
	})
}

// grids returns the session's original grid and its filtered version.
func (s *Server) grids(ctx context.Context, st session.State) (orig, filtered *grid.Grid, err error) {
	orig, err = s.loader.Load(ctx, st.Range)
	if err != nil {
		return nil, nil, err
	}
	filtered, err = s.filters.Filtered(orig, st.Params)
	if err != nil {
		return nil, nil, err
	}
	return orig, filtered, nil
}

// profile extracts the requested line. A missing kind defaults to
// transverse; a missing index falls back to the session's selection,
// moved into the grid if the range no longer covers it.
func (s *Server) profile(r *http.Request, st session.State, orig, filtered *grid.Grid) (*grid.Profile, error) {
	q := r.URL.Query()
	kind := grid.Transverse
	if k := q.Get("kind"); k != "" {
		var err error
		if kind, err = grid.ParseProfileKind(k); err != nil {
			return nil, err
		}
	}

	var index int
	if v := q.Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("%w: index %q is not an integer", grid.ErrIndexOutOfRange, v)
		}
		index = n
	} else {
		index = defaultIndex(orig, st, kind)
	}
	return grid.Extract(orig, filtered, kind, index)
}

func defaultIndex(g *grid.Grid, st session.State, kind grid.ProfileKind) int {
	if kind == grid.Transverse {
		if st.TransverseAt < g.LonBase() || st.TransverseAt >= g.LonBase()+g.Rows() {
			return g.LonBase()
		}
		return st.TransverseAt
	}
	if st.LongitudeAt < 0 || st.LongitudeAt >= g.Cols() {
		return 0
	}
	return st.LongitudeAt
}
