package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/render"
	"github.com/banshee-data/rutting.report/internal/session"
)

func writeCSVDownload(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	_, _ = w.Write(body)
}

func (s *Server) downloadProfileCSV(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	p, _, err := s.sessionProfile(r, sess)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := grid.WriteProfileCSV(&buf, p); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to write CSV: %v", err))
		return
	}
	writeCSVDownload(w, render.ProfileFilename(p, ".csv"), buf.Bytes())
}

func (s *Server) downloadGridCSV(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	orig, filtered, err := s.grids(r.Context(), sess.State())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	g := orig
	if wantFiltered(r) {
		g = filtered
	}
	var buf bytes.Buffer
	if err := grid.WriteGridCSV(&buf, g); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to write CSV: %v", err))
		return
	}
	writeCSVDownload(w, render.GridFilename(g, wantFiltered(r)), buf.Bytes())
}
