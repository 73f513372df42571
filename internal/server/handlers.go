package server

import (
	"bytes"
	"image"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yczddgj/chartgalaxy/pkg/backend"
	"github.com/yczddgj/chartgalaxy/pkg/canvas"
	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/geom"
	"github.com/yczddgj/chartgalaxy/pkg/layout"
	"github.com/yczddgj/chartgalaxy/pkg/pipeline"
	"github.com/yczddgj/chartgalaxy/pkg/placer"
	"github.com/yczddgj/chartgalaxy/pkg/refine"
	"github.com/yczddgj/chartgalaxy/pkg/session"
	"github.com/yczddgj/chartgalaxy/pkg/workbench"
)

// =============================================================================
// Sessions
// =============================================================================

type createSessionRequest struct {
	Name      string            `json:"name"`
	Selection session.Selection `json:"selection"`
}

type sessionResponse struct {
	*session.Session
	State *workbench.State `json:"state,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess := session.New(req.Name, s.cfg.SessionTTL)
	sess.Selection = req.Selection
	if err := s.cfg.Store.Set(r.Context(), sess); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "save session"))
		return
	}
	s.logger.Info("session created", "session", sess.ID, "name", sess.Name)
	writeJSON(w, http.StatusCreated, sessionResponse{Session: sess})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := s.cfg.Store.List(r.Context())
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "list sessions"))
		return
	}
	for _, sess := range list {
		sess.Snapshot = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": list})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st := e.wb.State()
	e.mu.Lock()
	resp := sessionResponse{Session: e.sess, State: &st}
	writeJSON(w, http.StatusOK, resp)
	e.mu.Unlock()
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := errors.ValidateSessionID(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.drop(id)
	if err := s.cfg.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "delete session"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.wb.State())
}

// =============================================================================
// Composition
// =============================================================================

type composeResponse struct {
	Strategy  string          `json:"strategy"`
	Placement *placer.Result  `json:"placement,omitempty"`
	Skipped   []string        `json:"skipped,omitempty"`
	Swapped   int             `json:"swapped"`
	Recreated int             `json:"recreated"`
	State     workbench.State `json:"state"`
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req workbench.Request
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateRequest(req.Request); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := e.wb.Compose(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.persist(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, composeResponse{
		Strategy:  res.Strategy.String(),
		Placement: res.Placement,
		Skipped:   res.Skipped,
		Swapped:   res.Swapped,
		Recreated: res.Recreated,
		State:     e.wb.State(),
	})
}

func validateRequest(req compositor.Request) error {
	for _, src := range append([]string{req.ChartSource, req.TitleSource}, req.PictogramSources...) {
		if src == "" {
			continue
		}
		if err := errors.ValidateSource(src); err != nil {
			return err
		}
	}
	if req.Layout != nil {
		return req.Layout.Validate()
	}
	return nil
}

// handleReset starts over after the user picks new data.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var sel session.Selection
	if err := decode(r, &sel); err != nil {
		s.writeError(w, r, err)
		return
	}
	e.wb.Reset()
	e.mu.Lock()
	e.sess.Selection = sel
	e.sess.Layout = nil
	e.mu.Unlock()
	if err := s.persist(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.wb.State())
}

type historyResponse struct {
	Changed bool            `json:"changed"`
	State   workbench.State `json:"state"`
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, (*workbench.Workbench).Undo)
}

func (s *Server) handleQuickRedo(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, (*workbench.Workbench).QuickRedo)
}

func (s *Server) step(w http.ResponseWriter, r *http.Request, fn func(*workbench.Workbench) (bool, error)) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	changed, err := fn(e.wb)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if changed {
		if err := s.persist(r.Context(), e); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, historyResponse{Changed: changed, State: e.wb.State()})
}

func (s *Server) handleModify(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var p workbench.Patch
	if err := decode(r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := e.wb.Modify(chi.URLParam(r, "element"), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.persist(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.wb.State())
}

func (s *Server) handleDeleteElement(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := e.wb.Delete(chi.URLParam(r, "element")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.persist(r.Context(), e); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e.wb.State())
}

// =============================================================================
// Export and refinement
// =============================================================================

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, (*workbench.Workbench).Export)
}

func (s *Server) handleCaptureBase(w http.ResponseWriter, r *http.Request) {
	s.writeImage(w, r, (*workbench.Workbench).CaptureBase)
}

func (s *Server) writeImage(w http.ResponseWriter, r *http.Request, render func(*workbench.Workbench) (*image.RGBA, error)) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	img, err := render(e.wb)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := canvas.WritePNG(&buf, img); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "encode png"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

type refineRequest struct {
	backend.Materials
	Background string `json:"background_color,omitempty"`
	Force      bool   `json:"force_regenerate,omitempty"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	e, err := s.open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req refineRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Title == "" || req.ChartType == "" {
		e.mu.Lock()
		sel := e.sess.Selection
		e.mu.Unlock()
		req.Title = firstNonEmpty(req.Title, sel.Title)
		req.Pictogram = firstNonEmpty(req.Pictogram, sel.Pictogram)
		req.ChartType = firstNonEmpty(req.ChartType, sel.ChartType)
	}
	res, err := e.wb.Refine(r.Context(), refine.Request{
		Background: req.Background,
		Materials:  req.Materials,
		Force:      req.Force,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Refiner == nil {
		s.writeError(w, r, workbench.ErrNoRefiner)
		return
	}
	q := r.URL.Query()
	key := refine.Key{Title: q.Get("title"), Pictogram: q.Get("pictogram"), ChartType: q.Get("chart_type")}
	if key.Title == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "title is required"))
		return
	}
	list, err := s.cfg.Refiner.Gallery().List(r.Context(), key)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "read gallery"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variants": list})
}

// =============================================================================
// Stateless
// =============================================================================

type placeRequest struct {
	Chart     geom.Rect   `json:"chart"`
	Canvas    geom.Size   `json:"canvas"`
	Size      float64     `json:"size"`
	Reference *geom.Point `json:"reference,omitempty"`
	// ChartSource, when set, is loaded so the placer can sample its
	// transparent regions.
	ChartSource string `json:"chart_source,omitempty"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	var req placeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Chart.Empty() || req.Canvas.Empty() {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "chart and canvas must be non-empty"))
		return
	}
	if req.Size <= 0 {
		req.Size = layout.DefaultPictogramSize
	}

	pr := placer.Request{Chart: req.Chart, Canvas: req.Canvas, Size: req.Size, Reference: req.Reference}
	if req.ChartSource != "" {
		if err := errors.ValidateSource(req.ChartSource); err != nil {
			s.writeError(w, r, err)
			return
		}
		img, err := s.cfg.Loader.Load(r.Context(), req.ChartSource)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		pr.ChartImage = img
	}
	res := s.cfg.Placer.Place(pr)
	writeJSON(w, http.StatusOK, map[string]any{
		"center":   res.Center,
		"strategy": res.Strategy,
		"box":      res.Box(req.Size),
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var opts pipeline.Options
	if err := decode(r, &opts); err != nil {
		s.writeError(w, r, err)
		return
	}
	if opts.Annotations != "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "annotations files are not accepted over HTTP; send layout"))
		return
	}
	opts.Formats = []string{pipeline.FormatPNG}
	res, err := s.cfg.Pipeline.Execute(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if res.CacheInfo.ArtifactHit {
		w.Header().Set("X-Cache", "hit")
	}
	_, _ = w.Write(res.Artifacts[pipeline.FormatPNG])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
