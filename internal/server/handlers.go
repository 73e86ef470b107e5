package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"hadiqa-go/internal/auth"
	"hadiqa-go/internal/fs"
	"hadiqa-go/internal/hq"
	"hadiqa-go/internal/httputil"
)

// feedItem is a catalog entry with its display counters and watch progress.
type feedItem struct {
	hq.VideoEntry
	Views    int64   `json:"views"`
	Likes    int64   `json:"likes"`
	Progress float64 `json:"progress"`
}

func (s *Server) items(entries []hq.VideoEntry) []feedItem {
	progress := hq.ProgressMap(s.svc.Interactions())
	out := make([]feedItem, 0, len(entries))
	for _, e := range entries {
		st := hq.Stats(e.URL)
		out = append(out, feedItem{VideoEntry: e, Views: st.Views, Likes: st.Likes, Progress: progress[e.ID]})
	}
	return out
}

func (s *Server) handleFeeds(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.svc.Feeds())
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	view, err := hq.ParseView(chi.URLParam(r, "view"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.items(s.svc.Feed(view)))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.items(s.svc.Search(r.URL.Query().Get("q"))))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refresh := s.svc.Refresh
	if hard, _ := strconv.ParseBool(r.URL.Query().Get("hard")); hard {
		refresh = s.svc.HardReset
	}
	entries, err := refresh(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.items(entries))
}

func (s *Server) handleCacheStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.OfflineStatus(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleOfflineMedia(w http.ResponseWriter, r *http.Request) {
	entry, body, err := s.svc.OpenOffline(chi.URLParam(r, "id"))
	if err != nil {
		writeLookupError(w, err)
		return
	}
	defer body.Close()

	_, contentType, ok := fs.MediaFormat(entry.URL)
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.logger.Warn("serving offline media failed", "id", entry.ID, "error", err)
	}
}

func (s *Server) interaction(fn func(ctx context.Context, id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(r.Context(), chi.URLParam(r, "id")); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusOK, s.svc.Interactions())
	}
}

type progressRequest struct {
	Progress *float64 `json:"progress"`
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := httputil.DecodeJSON(r, &req); err != nil || req.Progress == nil {
		httputil.WriteError(w, http.StatusBadRequest, "progress is required")
		return
	}
	if err := s.svc.RecordProgress(r.Context(), chi.URLParam(r, "id"), *req.Progress); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.svc.Interactions())
}

func (s *Server) handleRouterState(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.svc.Router().State())
}

type navigateRequest struct {
	View string `json:"view"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := hq.ParseView(req.View)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	capability, _ := s.gate.Capability(r)
	if err := s.svc.Router().Navigate(view, capability); err != nil {
		if errors.Is(err, hq.ErrAdminRequired) {
			httputil.WriteError(w, http.StatusForbidden, err.Error())
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.svc.Router().State())
}

type overlayRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleOpenShort(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := s.svc.PlayShort(req.ID, s.svc.Router().View()); err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.svc.Router().State())
}

type scrollRequest struct {
	Index int `json:"index"`
}

func (s *Server) handleScrollShort(w http.ResponseWriter, r *http.Request) {
	o := s.svc.Router().Shorts()
	if o == nil {
		httputil.WriteError(w, http.StatusConflict, "no shorts overlay open")
		return
	}
	var req scrollRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o.ScrollTo(req.Index)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"index": o.Index(), "current": o.Current()})
}

func (s *Server) handleStepShort(delta int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o := s.svc.Router().Shorts()
		if o == nil {
			writeLookupError(w, hq.ErrNoOverlay)
			return
		}
		moved := o.Previous
		if delta > 0 {
			moved = o.Next
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"moved": moved(), "index": o.Index(), "current": o.Current()})
	}
}

func (s *Server) handleCloseShort(w http.ResponseWriter, r *http.Request) {
	s.svc.Router().CloseShorts()
	httputil.WriteJSON(w, http.StatusOK, s.svc.Router().State())
}

func (s *Server) handleOpenLong(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.svc.PlayLong(req.ID, s.svc.Router().View())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"current": o.Current(), "suggestions": s.items(o.Suggestions())})
}

func (s *Server) handleLongEnded(w http.ResponseWriter, r *http.Request) {
	o := s.svc.Router().Long()
	if o == nil {
		httputil.WriteError(w, http.StatusConflict, "no long overlay open")
		return
	}
	next, looped := o.Ended()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"current": next, "looped": looped})
}

func (s *Server) handleSwitchLong(w http.ResponseWriter, r *http.Request) {
	var req overlayRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	o, err := s.svc.SwitchLong(req.ID)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"current": o.Current(), "suggestions": s.items(o.Suggestions())})
}

func (s *Server) handleCloseLong(w http.ResponseWriter, r *http.Request) {
	s.svc.Router().CloseLong()
	httputil.WriteJSON(w, http.StatusOK, s.svc.Router().State())
}

func (s *Server) handleToast(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"toast": s.svc.Router().State().Toast})
}

// audit logs an admin action with the token subject that performed it.
func (s *Server) audit(r *http.Request, action string, args ...any) {
	capability := auth.CapabilityFromContext(r.Context())
	s.logger.Info("admin action", append([]any{"action", action, "subject", capability.Subject}, args...)...)
}

func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	capability := auth.CapabilityFromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"admin": capability.Admin, "subject": capability.Subject})
}

func (s *Server) handleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.DeleteVideo(r.Context(), id); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit(r, "delete video", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUndeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.UndeleteVideo(r.Context(), id); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit(r, "undelete video", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.svc.Categories())
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.svc.AddCategory(r.Context(), req.Name); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.audit(r, "add category", "name", req.Name)
	httputil.WriteJSON(w, http.StatusCreated, s.svc.Categories())
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.svc.RemoveCategory(r.Context(), name); err != nil {
		writeLookupError(w, err)
		return
	}
	s.audit(r, "remove category", "name", name)
	httputil.WriteJSON(w, http.StatusOK, s.svc.Categories())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := s.receiveMedia(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	width, _ := strconv.Atoi(r.FormValue("width"))
	height, _ := strconv.Atoi(r.FormValue("height"))
	entry, err := s.svc.Upload(r.Context(), file, hq.UploadMeta{
		Title:    r.FormValue("title"),
		Category: r.FormValue("category"),
		Width:    width,
		Height:   height,
	})
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.audit(r, "upload", "id", entry.ID)
	httputil.WriteJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleWarmCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.WarmOfflineCache(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"cached": n})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearOfflineCache(r.Context()); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	file, cleanup, err := s.receiveMedia(w, r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	httputil.WriteJSON(w, http.StatusOK, s.svc.Analyze(r.Context(), file))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		httputil.WriteJSON(w, http.StatusOK, []any{})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.history.Messages(r.Context()))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		httputil.WriteError(w, http.StatusNotFound, "voice sessions are not configured")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"count": s.usage.Today(r.Context()), "limit": s.usage.Limit()})
}

// receiveMedia spools the multipart "file" field to a temp file that keeps the
// original extension, and resolves it through the media manager.
func (s *Server) receiveMedia(w http.ResponseWriter, r *http.Request) (*hq.MediaFile, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	src, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("file field is required")
	}
	defer src.Close()

	tmp, err := os.CreateTemp(s.tempDir, "hadiqa-upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return nil, nil, fmt.Errorf("creating temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return nil, nil, fmt.Errorf("receiving file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("receiving file: %w", err)
	}

	file, err := s.media.Resolve(tmp.Name())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return file, cleanup, nil
}

func writeLookupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hq.ErrNotFound), errors.Is(err, hq.ErrNotCached):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, hq.ErrNoOverlay):
		httputil.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	httputil.WriteError(w, http.StatusBadRequest, err.Error())
}
