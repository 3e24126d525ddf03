package api

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/banshee-data/rutting.report/internal/auth"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/session"
)

//go:embed templates/*
var templateFS embed.FS

var (
	loginTemplate     = template.Must(template.ParseFS(templateFS, "templates/login.html.tmpl"))
	dashboardTemplate = template.Must(template.ParseFS(templateFS, "templates/dashboard.html.tmpl"))
)

// loginFailedMessage is shown for any rejected login.
const loginFailedMessage = "User not known or password incorrect"

type loginPage struct {
	Username string
	Error    string
}

// renderHTML executes t into a buffer first so a template failure still
// produces a clean 500.
func renderHTML(w http.ResponseWriter, status int, t *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		logf("failed to render %s: %v", t.Name(), err)
		httputil.InternalServerError(w, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := s.sessions.FromRequest(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	renderHTML(w, http.StatusOK, loginTemplate, loginPage{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.BadRequest(w, "invalid form")
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	err := s.auth.Verify(r.Context(), username, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		logf("failed login for %q from %s", username, r.RemoteAddr)
		renderHTML(w, http.StatusUnauthorized, loginTemplate, loginPage{Username: username, Error: loginFailedMessage})
		return
	case err != nil:
		logf("login check for %q failed: %v", username, err)
		httputil.InternalServerError(w, "failed to check credentials")
		return
	}

	sess := s.sessions.Create(username)
	s.sessions.SetCookie(w, sess, s.cfg.GetSecureCookies())
	logf("%q logged in", username)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		s.sessions.Delete(c.Value)
	}
	session.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
