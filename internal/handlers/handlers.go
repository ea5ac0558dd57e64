// Package handlers is the HTTP façade over the generation pipeline:
// routing, CORS, bearer-token auth, request validation and JSON encoding.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"subgen/internal/auth"
	"subgen/internal/domain"
	"subgen/internal/generate"
	"subgen/internal/keys"
	"subgen/internal/media"
)

const defaultMaxUploadBytes = 500 * 1024 * 1024

// App wires the HTTP routes to the orchestrator.
type App struct {
	logger *slog.Logger

	router   *chi.Mux
	verifier auth.TokenVerifier
	orch     *generate.Orchestrator

	tempDir        string
	maxUploadBytes int64

	upgrader      websocket.Upgrader
	watchInterval time.Duration
}

func NewApp(logger *slog.Logger, verifier auth.TokenVerifier, orch *generate.Orchestrator, tempDir string, maxUploadBytes int64) *App {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	app := &App{
		logger:         logger,
		router:         chi.NewRouter(),
		verifier:       verifier,
		orch:           orch,
		tempDir:        tempDir,
		maxUploadBytes: maxUploadBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		watchInterval: 2 * time.Second,
	}

	app.registerRoutes()
	return app
}

func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) registerRoutes() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.RealIP)
	a.router.Use(middleware.Recoverer)
	a.router.Use(a.corsMiddleware)

	a.router.Get("/health", a.health)

	a.router.Group(func(r chi.Router) {
		r.Use(a.requireAuth)
		r.Post("/subtitle/status", a.subtitleStatus)
		r.Post("/subtitles/yt/generate", a.generateFromURL)
		r.Post("/subtitles/videofile/generate", a.generateFromUpload)
		r.Post("/history", a.history)
		r.Get("/get_user_info", a.userInfo)
		r.Get("/subtitle/watch/{media_id}", a.watch)
	})
}

// requireAuth verifies the bearer credential and stores the resolved
// identity on the request context. Websocket clients may pass the token as
// a query parameter since browsers cannot set headers on upgrades.
func (a *App) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == header {
			token = r.URL.Query().Get("token")
		}

		ident, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}
		ctx := contextWithIdentity(r.Context(), ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *App) health(w http.ResponseWriter, _ *http.Request) {
	a.respondJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

type videoURLRequest struct {
	VideoURL string `json:"video_url"`
}

type subtitleView struct {
	Status       string     `json:"status"`
	SubtitleID   string     `json:"subtitle_id,omitempty"`
	VideoID      string     `json:"video_id,omitempty"`
	VideoURL     string     `json:"video_url,omitempty"`
	Title        string     `json:"title,omitempty"`
	VideoLength  int        `json:"video_length,omitempty"`
	Thumbnail    string     `json:"thumbnail,omitempty"`
	Subtitle     string     `json:"subtitle,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	FailedReason string     `json:"detail,omitempty"`
}

func (a *App) subtitleStatus(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFromContext(r.Context())

	var req videoURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validVideoURL(req.VideoURL) {
		a.writeError(w, http.StatusForbidden, errors.New("invalid video url"))
		return
	}

	mediaID := keys.MediaIDForURL(req.VideoURL, ident.UID)
	status, err := a.orch.GetStatus(r.Context(), mediaID)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	a.respondJSON(w, http.StatusOK, statusView(mediaID, status))
}

func statusView(mediaID string, status generate.Status) subtitleView {
	switch {
	case status.Done():
		created := status.Subtitle.CreatedAt
		return subtitleView{
			Status:      "OK",
			SubtitleID:  status.Subtitle.ID,
			VideoID:     status.Media.ID,
			VideoURL:    status.Media.MediaURL,
			Title:       status.Media.Title,
			VideoLength: status.Media.DurationSeconds,
			Thumbnail:   status.Media.ThumbnailURL,
			Subtitle:    status.Subtitle.Content,
			CreatedAt:   &created,
		}
	case status.Failed():
		return subtitleView{Status: "failed", VideoID: mediaID, FailedReason: status.Job.Reason}
	default:
		return subtitleView{Status: "pending", VideoID: mediaID}
	}
}

func (a *App) generateFromURL(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFromContext(r.Context())

	var req videoURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !validVideoURL(req.VideoURL) {
		a.writeError(w, http.StatusForbidden, errors.New("invalid video url"))
		return
	}

	mediaID, err := a.orch.Generate(r.Context(), media.Source{
		Kind: domain.SourceYouTube,
		URL:  req.VideoURL,
	}, ident)
	if err != nil {
		a.writeError(w, statusCodeFor(err), err)
		return
	}

	a.respondJSON(w, http.StatusOK, map[string]string{"status": "OK", "media_id": mediaID})
}

func (a *App) generateFromUpload(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		a.logger.Warn("invalid multipart upload", "error", err)
		a.writeError(w, http.StatusBadRequest, errors.New("invalid or oversized upload"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, http.StatusBadRequest, errors.New("video file is required"))
		return
	}
	defer file.Close()

	spooled, err := os.CreateTemp(a.tempDir, "subgen-upload-*")
	if err != nil {
		a.logger.Error("failed to spool upload", "error", err)
		a.writeError(w, http.StatusInternalServerError, errors.New("failed to store upload"))
		return
	}
	if _, err := io.Copy(spooled, file); err != nil {
		spooled.Close()
		os.Remove(spooled.Name())
		a.logger.Error("failed to write upload", "error", err)
		a.writeError(w, http.StatusInternalServerError, errors.New("failed to store upload"))
		return
	}
	spooled.Close()

	mediaID, err := a.orch.Generate(r.Context(), media.Source{
		Kind:       domain.SourceUpload,
		UploadPath: spooled.Name(),
		UploadName: header.Filename,
		Token:      keys.NewUploadToken(),
	}, ident)
	if err != nil {
		os.Remove(spooled.Name())
		a.writeError(w, statusCodeFor(err), err)
		return
	}

	a.respondJSON(w, http.StatusOK, map[string]string{"status": "OK", "media_id": mediaID})
}

type historyRequest struct {
	LastCreatedAt *time.Time `json:"last_created_at,omitempty"`
	Count         int        `json:"count,omitempty"`
}

type historyResponse struct {
	Status    string         `json:"status"`
	Subtitles []subtitleView `json:"subtitles"`
}

func (a *App) history(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFromContext(r.Context())

	var req historyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.writeError(w, http.StatusBadRequest, errors.New("invalid history request"))
			return
		}
	}

	rows, err := a.orch.History(r.Context(), ident.UID, req.LastCreatedAt, req.Count)
	if err != nil {
		a.writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := historyResponse{Status: "OK", Subtitles: make([]subtitleView, 0, len(rows))}
	for _, row := range rows {
		created := row.Media.CreatedAt
		resp.Subtitles = append(resp.Subtitles, subtitleView{
			Status:      "OK",
			SubtitleID:  row.Subtitle.ID,
			VideoID:     row.Media.ID,
			VideoURL:    row.Media.MediaURL,
			Title:       row.Media.Title,
			VideoLength: row.Media.DurationSeconds,
			Thumbnail:   row.Media.ThumbnailURL,
			Subtitle:    row.Subtitle.Content,
			CreatedAt:   &created,
		})
	}
	a.respondJSON(w, http.StatusOK, resp)
}

func (a *App) userInfo(w http.ResponseWriter, r *http.Request) {
	ident, _ := identityFromContext(r.Context())

	account, err := a.orch.Account(r.Context(), ident)
	if err != nil {
		a.writeError(w, statusCodeFor(err), err)
		return
	}

	a.respondJSON(w, http.StatusOK, struct {
		Status      string    `json:"status"`
		ID          string    `json:"id"`
		Credits     int       `json:"credits"`
		DisplayName string    `json:"displayName"`
		Email       string    `json:"email"`
		CreatedAt   time.Time `json:"createdAt"`
	}{"OK", account.ID, account.Credits, account.DisplayName, account.Email, account.CreatedAt})
}

// watch streams status transitions over a websocket until the generation
// completes or fails.
func (a *App) watch(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "media_id")
	if mediaID == "" {
		http.NotFound(w, r)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(a.watchInterval)
	defer ticker.Stop()

	last := ""
	for {
		status, err := a.orch.GetStatus(r.Context(), mediaID)
		if err != nil {
			a.logger.Warn("status read failed during watch", "media_id", mediaID, "error", err)
			return
		}
		view := statusView(mediaID, status)
		if view.Status != last {
			if err := conn.WriteJSON(view); err != nil {
				return
			}
			last = view.Status
		}
		if status.Done() || status.Failed() {
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// validVideoURL is the cheap syntactic check run before any network call.
func validVideoURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Hostname() != ""
}

// statusCodeFor maps pipeline errors onto the HTTP surface: credential
// problems are 401, authorization and source rejections 403.
func statusCodeFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredential),
		errors.Is(err, domain.ErrExpiredCredential),
		errors.Is(err, domain.ErrRevokedCredential),
		errors.Is(err, domain.ErrDisabledAccount):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnsupportedSource),
		errors.Is(err, domain.ErrMetadataFetch),
		errors.Is(err, domain.ErrInsufficientCredits),
		errors.Is(err, domain.ErrDurationOverLimit):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *App) writeError(w http.ResponseWriter, code int, err error) {
	a.respondJSON(w, code, map[string]string{"status": "error", "detail": err.Error()})
}

func (a *App) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		a.logger.Error("failed to encode json", "error", err)
	}
}

func (a *App) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
