package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"

	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/session"
)

// windowChoices are the window sizes offered on the dashboard.
var windowChoices = []int{3, 5, 7, 9}

// filterAttempts bounds how often updateFilter reloads when another
// request moves the session's range during its load.
const filterAttempts = 3

var errRangeMoved = fmt.Errorf("%w: range changed by a concurrent update", grid.ErrDataSource)

type dashboardPage struct {
	Username     string
	State        session.State
	TransverseAt int
	LongitudeAt  int
	Kinds        []grid.FilterKind
	Windows      []int
	Summary      *grid.Summary
	Error        string
}

func (s *Server) showDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	s.renderDashboard(w, r, sess, http.StatusOK, "")
}

// renderDashboard draws the page for the session's current state. A grid
// that cannot be loaded is reported on the page rather than failing it, so
// the user can still fix the range.
func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, msg string) {
	st := sess.State()
	page := dashboardPage{
		Username:     sess.Username,
		State:        st,
		TransverseAt: st.TransverseAt,
		LongitudeAt:  st.LongitudeAt,
		Kinds:        []grid.FilterKind{grid.FilterMedian, grid.FilterMean, grid.FilterNone},
		Windows:      windowChoices,
		Error:        msg,
	}
	if !containsInt(windowChoices, st.Params.Window) {
		page.Windows = append(append([]int(nil), windowChoices...), st.Params.Window)
	}

	g, err := s.loader.Load(r.Context(), st.Range)
	if err != nil {
		if page.Error == "" {
			page.Error = err.Error()
		}
	} else {
		sum := grid.Summarize(g)
		page.Summary = &sum
		page.TransverseAt = defaultIndex(g, st, grid.Transverse)
		page.LongitudeAt = defaultIndex(g, st, grid.Longitudinal)
	}
	renderHTML(w, status, dashboardTemplate, page)
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// filterRequest is a partial update of the session state. Nil fields are
// left as they are.
type filterRequest struct {
	From         *int     `json:"from"`
	To           *int     `json:"to"`
	ClampEnabled *bool    `json:"clamp_enabled"`
	Lower        *float64 `json:"lower"`
	Upper        *float64 `json:"upper"`
	Kind         *string  `json:"kind"`
	Window       *int     `json:"window"`
	TransverseAt *int     `json:"transverse_lon_id"`
	LongitudeAt  *int     `json:"longitudinal_trans_id"`
}

// isJSON reports whether r carries a JSON body.
func isJSON(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/json"
}

func parseFilterRequest(w http.ResponseWriter, r *http.Request) (filterRequest, error) {
	var req filterRequest
	if isJSON(r) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64*1024))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON body: %w", err)
		}
		return req, nil
	}

	if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}
	form := r.PostForm
	var err error
	if req.From, err = formInt(form, "from"); err != nil {
		return req, err
	}
	if req.To, err = formInt(form, "to"); err != nil {
		return req, err
	}
	if req.Window, err = formInt(form, "window"); err != nil {
		return req, err
	}
	if req.TransverseAt, err = formInt(form, "transverse_lon_id"); err != nil {
		return req, err
	}
	if req.LongitudeAt, err = formInt(form, "longitudinal_trans_id"); err != nil {
		return req, err
	}
	if req.Lower, err = formFloat(form, "lower"); err != nil {
		return req, err
	}
	if req.Upper, err = formFloat(form, "upper"); err != nil {
		return req, err
	}
	// The dashboard sends a hidden "false" ahead of the checkbox, so the
	// last value wins.
	if vs := form["clamp_enabled"]; len(vs) > 0 {
		b, err := strconv.ParseBool(vs[len(vs)-1])
		if err != nil {
			return req, fmt.Errorf("clamp_enabled: %w", err)
		}
		req.ClampEnabled = &b
	}
	if v := form.Get("kind"); v != "" {
		req.Kind = &v
	}
	return req, nil
}

func formInt(form url.Values, key string) (*int, error) {
	v := form.Get(key)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return &n, nil
}

func formFloat(form url.Values, key string) (*float64, error) {
	v := form.Get(key)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return &f, nil
}

// apply merges req into st and validates the resulting range and filter.
func (req filterRequest) apply(st *session.State) error {
	if req.From != nil {
		st.Range.From = *req.From
	}
	if req.To != nil {
		st.Range.To = *req.To
	}
	if req.ClampEnabled != nil {
		st.Params.ClampEnabled = *req.ClampEnabled
	}
	if req.Lower != nil {
		st.Params.Lower = *req.Lower
	}
	if req.Upper != nil {
		st.Params.Upper = *req.Upper
	}
	if req.Kind != nil {
		k, err := grid.ParseFilterKind(*req.Kind)
		if err != nil {
			return err
		}
		st.Params.Kind = k
	}
	if req.Window != nil {
		st.Params.Window = *req.Window
	}
	if req.TransverseAt != nil {
		st.TransverseAt = *req.TransverseAt
	}
	if req.LongitudeAt != nil {
		st.LongitudeAt = *req.LongitudeAt
	}
	if err := st.Range.Validate(); err != nil {
		return err
	}
	return st.Params.Validate()
}

// placeProfiles checks explicit profile indices against g and moves
// implicit ones into it.
func (req filterRequest) placeProfiles(st *session.State, g *grid.Grid) error {
	lastLon := g.LonBase() + g.Rows() - 1
	if st.TransverseAt < g.LonBase() || st.TransverseAt > lastLon {
		if req.TransverseAt != nil {
			return fmt.Errorf("%w: lonID %d outside [%d, %d]", grid.ErrIndexOutOfRange, st.TransverseAt, g.LonBase(), lastLon)
		}
		st.TransverseAt = g.LonBase()
	}
	if st.LongitudeAt < 0 || st.LongitudeAt >= g.Cols() {
		if req.LongitudeAt != nil {
			return fmt.Errorf("%w: transID %d outside [0, %d)", grid.ErrIndexOutOfRange, st.LongitudeAt, g.Cols())
		}
		st.LongitudeAt = 0
	}
	return nil
}

// applyFilter loads the grid for the requested range without holding the
// session lock, then commits the new state if the range is unchanged.
func (s *Server) applyFilter(r *http.Request, sess *session.Session, req filterRequest) error {
	next := sess.State()
	if err := req.apply(&next); err != nil {
		return err
	}
	g, err := s.loader.Load(r.Context(), next.Range)
	if err != nil {
		return err
	}
	return sess.Update(func(st *session.State) error {
		if err := req.apply(st); err != nil {
			return err
		}
		if st.Range != next.Range {
			return errRangeMoved
		}
		return req.placeProfiles(st, g)
	})
}

func (s *Server) updateFilter(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	jsonReq := isJSON(r)
	req, err := parseFilterRequest(w, r)
	if err != nil {
		if jsonReq {
			httputil.BadRequest(w, err.Error())
		} else {
			s.renderDashboard(w, r, sess, http.StatusBadRequest, err.Error())
		}
		return
	}

	for attempt := 1; ; attempt++ {
		if err = s.applyFilter(r, sess, req); !errors.Is(err, errRangeMoved) || attempt == filterAttempts {
			break
		}
	}
	if err != nil {
		if jsonReq {
			httputil.WriteError(w, err)
		} else {
			s.renderDashboard(w, r, sess, httputil.StatusForError(err), err.Error())
		}
		return
	}

	if jsonReq {
		httputil.WriteJSONOK(w, sess.State())
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// gridResponse is the body of /api/grid.
type gridResponse struct {
	Range    grid.Range   `json:"range"`
	Params   grid.Params  `json:"params"`
	Original grid.Summary `json:"original"`
	Filtered grid.Summary `json:"filtered"`
}

func (s *Server) showGrid(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	st := sess.State()
	orig, filtered, err := s.grids(r.Context(), st)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSONOK(w, gridResponse{
		Range:    st.Range,
		Params:   st.Params,
		Original: grid.Summarize(orig),
		Filtered: grid.Summarize(filtered),
	})
}
