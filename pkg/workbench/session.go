package workbench

import (
	"context"

	"github.com/yczddgj/chartgalaxy/pkg/compositor"
	"github.com/yczddgj/chartgalaxy/pkg/errors"
	"github.com/yczddgj/chartgalaxy/pkg/session"
)

// Save copies the workbench state into s. Asset names already on s are
// kept; the sources come from the last composite.
func (w *Workbench) Save(s *session.Session) error {
	w.recorder.Flush()
	data, err := w.surface.Snapshot()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "snapshot surface")
	}
	s.Snapshot = data
	s.Background = w.surface.Background()
	if req, ok := w.Last(); ok {
		s.Selection.Chart = req.ChartSource
		s.Selection.TitleSrc = req.TitleSource
		s.Selection.Pictograms = req.PictogramSources
		s.Layout = req.Layout
	}
	return nil
}

// Open replaces the workbench state with s. A session with a snapshot is
// restored as saved, reloading its images; one without is composed fresh
// from its selection. Either way the history starts over.
func (w *Workbench) Open(ctx context.Context, s *session.Session) error {
	w.coalesce.Cancel()
	w.recorder.Cancel()

	req := Request{
		Request: compositor.Request{
			ChartSource:      s.Selection.Chart,
			TitleSource:      s.Selection.TitleSrc,
			PictogramSources: s.Selection.Pictograms,
			Layout:           s.Layout,
		},
		Background: s.Background,
	}

	if len(s.Snapshot) == 0 {
		w.Reset()
		if req.ChartSource == "" && req.TitleSource == "" && len(req.PictogramSources) == 0 {
			return nil
		}
		_, err := w.Compose(ctx, req)
		return err
	}

	err := w.gate.Run(func() error {
		if err := w.surface.Restore(s.Snapshot); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "session %s", s.ID)
		}
		if n := w.reload(ctx); n > 0 {
			w.logger.Warn("session restored with missing images", "session", s.ID, "missing", n)
		}
		w.mu.Lock()
		w.last = &req
		w.mu.Unlock()
		w.recorder.Cancel()
		defer w.pruneImages()
		return w.history.SaveInitial()
	})
	if err != nil {
		return err
	}
	w.logger.Info("session opened", "session", s.ID, "elements", w.surface.Len())
	return nil
}
