package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/render"
	"github.com/banshee-data/rutting.report/internal/session"
)

// wantFiltered reports whether the request asks for the filtered grid.
func wantFiltered(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("filtered"))
	return err == nil && v
}

func (s *Server) surfaceChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	orig, filtered, err := s.grids(r.Context(), st)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	maxPoints := s.cfg.GetSurfaceMaxPoints()
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 0 && v < maxPoints {
			maxPoints = v
		}
	}

	g, title := orig, "Original surface"
	if wantFiltered(r) {
		g, title = filtered, fmt.Sprintf("Filtered surface (%s)", st.Params)
	}

	var buf bytes.Buffer
	if err := render.RenderSurface(&buf, g, title, maxPoints, s.charts); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// sessionProfile loads the session's grids and extracts the requested
// profile. yMax is the tallest original height, which pins the chart's y
// axis across profiles.
func (s *Server) sessionProfile(r *http.Request, sess *session.Session) (p *grid.Profile, yMax float64, err error) {
	st := sess.State()
	orig, filtered, err := s.grids(r.Context(), st)
	if err != nil {
		return nil, 0, err
	}
	p, err = s.profile(r, st, orig, filtered)
	if err != nil {
		return nil, 0, err
	}
	return p, grid.Summarize(orig).Max, nil
}

func (s *Server) profileChart(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	p, yMax, err := s.sessionProfile(r, sess)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.RenderProfile(&buf, p, yMax, s.charts); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) profilePNG(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	p, yMax, err := s.sessionProfile(r, sess)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := render.WriteProfilePNG(&buf, p, yMax, render.PlotWidth, render.PlotHeight); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, render.ProfileFilename(p, ".png")))
	_, _ = w.Write(buf.Bytes())
}
