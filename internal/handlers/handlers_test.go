package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"subgen/internal/auth"
	"subgen/internal/domain"
	"subgen/internal/generate"
	"subgen/internal/keys"
	"subgen/internal/media"
	"subgen/internal/store"
	"subgen/internal/transcribe"
)

type fakeManager struct {
	durationSeconds int
}

func (f *fakeManager) Resolve(_ context.Context, src media.Source, ownerID string) (*domain.Media, error) {
	sourceKey := src.URL
	if src.Kind == domain.SourceUpload {
		sourceKey = keys.UniqueUploadName(src.UploadName, src.Token)
		return &domain.Media{
			ID:              keys.MediaIDForUpload(sourceKey, ownerID),
			OwnerID:         ownerID,
			Title:           sourceKey,
			DurationSeconds: f.durationSeconds,
			Source:          domain.SourceUpload,
			Type:            domain.MediaTypeMP4,
			LocalPath:       src.UploadPath,
		}, nil
	}
	return &domain.Media{
		ID:              keys.MediaIDForURL(sourceKey, ownerID),
		OwnerID:         ownerID,
		Title:           "a video",
		DurationSeconds: f.durationSeconds,
		Source:          domain.SourceYouTube,
		SourceURL:       src.URL,
		Type:            domain.MediaTypeMP4,
	}, nil
}

func (f *fakeManager) Acquire(_ context.Context, m *domain.Media) error {
	if m.LocalPath == "" {
		m.LocalPath = m.Workdir + "/video.mp4"
	}
	return nil
}

func (f *fakeManager) Convert(_ context.Context, m *domain.Media, _ domain.MediaType) error {
	m.Type = domain.MediaTypeMP3
	return nil
}

type fakeEngine struct {
	gate chan struct{}
}

func (e *fakeEngine) Transcribe(ctx context.Context, _ string) (transcribe.Result, error) {
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return transcribe.Result{}, ctx.Err()
		}
	}
	return transcribe.Result{
		Language: "en",
		Segments: []transcribe.Segment{{Start: 0, End: 1.5, Text: "hi"}},
	}, nil
}

func newTestApp(t *testing.T, durationSeconds, startingCredits int) (*App, *store.Memory) {
	t.Helper()
	return newTestAppWithEngine(t, durationSeconds, startingCredits, &fakeEngine{})
}

func newTestAppWithEngine(t *testing.T, durationSeconds, startingCredits int, engine transcribe.Engine) (*App, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()

	mgr := &fakeManager{durationSeconds: durationSeconds}
	orch := generate.New(logger, mem, map[domain.SourceKind]media.Manager{
		domain.SourceYouTube: mgr,
		domain.SourceUpload:  mgr,
	}, engine, generate.Config{
		StartingCredits: startingCredits,
		Workers:         2,
		TempDir:         t.TempDir(),
	})
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("start orchestrator: %v", err)
	}
	t.Cleanup(orch.Stop)

	verifier := auth.StaticVerifier{
		"good-token": {UID: "user-1", Email: "u1@example.com", DisplayName: "User One"},
	}
	return NewApp(logger, verifier, orch, t.TempDir(), 0), mem
}

func doJSON(t *testing.T, app *App, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func waitForStatus(t *testing.T, app *App, token, videoURL, want string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := doJSON(t, app, http.MethodPost, "/subtitle/status", token, map[string]string{"video_url": videoURL})
		payload := decodeBody(t, rec)
		if payload["status"] == want {
			return payload
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("status never became %q", want)
	return nil
}

func TestHealthNoAuth(t *testing.T) {
	app, _ := newTestApp(t, 100, 5)
	rec := doJSON(t, app, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
	if payload := decodeBody(t, rec); payload["status"] != "OK" {
		t.Fatalf("health payload = %v", payload)
	}
}

func TestAuthRequired(t *testing.T) {
	app, _ := newTestApp(t, 100, 5)
	rec := doJSON(t, app, http.MethodPost, "/history", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token = %d, want 401", rec.Code)
	}
	rec = doJSON(t, app, http.MethodPost, "/history", "wrong", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token = %d, want 401", rec.Code)
	}
}

func TestGenerateRejectsInvalidURL(t *testing.T) {
	app, _ := newTestApp(t, 100, 5)
	rec := doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": "not-a-url"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("invalid url = %d, want 403", rec.Code)
	}
}

func TestGenerateAndStatusLifecycle(t *testing.T) {
	app, _ := newTestApp(t, 299, 1)
	videoURL := "https://youtu.be/abc"

	// Unknown media reports pending.
	rec := doJSON(t, app, http.MethodPost, "/subtitle/status", "good-token", map[string]string{"video_url": videoURL})
	if payload := decodeBody(t, rec); payload["status"] != "pending" {
		t.Fatalf("pre-submit status = %v", payload)
	}

	rec = doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": videoURL})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d: %s", rec.Code, rec.Body.String())
	}
	accepted := decodeBody(t, rec)
	if mediaID, _ := accepted["media_id"].(string); accepted["status"] != "OK" || mediaID == "" {
		t.Fatalf("generate payload = %v", accepted)
	}

	payload := waitForStatus(t, app, "good-token", videoURL, "OK")
	if payload["video_length"] != float64(299) {
		t.Fatalf("completed status payload = %v", payload)
	}
	subtitle, _ := payload["subtitle"].(string)
	if !strings.Contains(subtitle, "00:00:00,000 --> 00:00:01,500") {
		t.Fatalf("subtitle not SRT-formatted: %q", subtitle)
	}
}

func TestGenerateInsufficientCredits(t *testing.T) {
	app, _ := newTestApp(t, 360, 1) // 360s needs 2 credits, account has 1
	rec := doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": "https://youtu.be/abc"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("insufficient credits = %d, want 403", rec.Code)
	}
}

func TestGenerateDurationOverCeiling(t *testing.T) {
	app, _ := newTestApp(t, 700, 5)
	rec := doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": "https://youtu.be/abc"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("over ceiling = %d, want 403", rec.Code)
	}
}

func TestHistoryAfterGeneration(t *testing.T) {
	app, _ := newTestApp(t, 120, 5)
	videoURL := "https://youtu.be/history-test"

	rec := doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": videoURL})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d", rec.Code)
	}
	waitForStatus(t, app, "good-token", videoURL, "OK")

	rec = doJSON(t, app, http.MethodPost, "/history", "good-token", map[string]any{"count": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	subtitles, ok := payload["subtitles"].([]any)
	if !ok || len(subtitles) != 1 {
		t.Fatalf("history payload = %v", payload)
	}
	row := subtitles[0].(map[string]any)
	if content, _ := row["subtitle"].(string); row["video_url"] != videoURL || content == "" {
		t.Fatalf("history row = %v", row)
	}
}

func TestUserInfoBootstrapsAccount(t *testing.T) {
	app, _ := newTestApp(t, 100, 5)
	rec := doJSON(t, app, http.MethodGet, "/get_user_info", "good-token", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get_user_info = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if payload["credits"] != float64(5) || payload["id"] != "user-1" {
		t.Fatalf("account payload = %v", payload)
	}
}

func TestWatchStreamsStatusTransitions(t *testing.T) {
	engine := &fakeEngine{gate: make(chan struct{})}
	app, _ := newTestAppWithEngine(t, 120, 5, engine)
	app.watchInterval = 10 * time.Millisecond

	server := httptest.NewServer(app.Router())
	defer server.Close()

	rec := doJSON(t, app, http.MethodPost, "/subtitles/yt/generate", "good-token", map[string]string{"video_url": "https://youtu.be/watched"})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d: %s", rec.Code, rec.Body.String())
	}
	mediaID, _ := decodeBody(t, rec)["media_id"].(string)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/subtitle/watch/" + mediaID + "?token=good-token"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v (resp %v)", wsURL, err, resp)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var frame map[string]any
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read first frame: %v", err)
	}
	if frame["status"] != "pending" {
		t.Fatalf("first frame = %v, want pending", frame)
	}

	close(engine.gate)

	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read completion frame: %v", err)
	}
	if frame["status"] != "OK" {
		t.Fatalf("completion frame = %v, want OK", frame)
	}
	if subtitle, _ := frame["subtitle"].(string); !strings.Contains(subtitle, "00:00:01,500") {
		t.Fatalf("completion frame missing subtitle content: %v", frame)
	}

	// The server ends the stream after the terminal transition.
	if err := conn.ReadJSON(&frame); err == nil {
		t.Fatalf("stream stayed open after completion, got extra frame %v", frame)
	}
}

func TestUploadGenerate(t *testing.T) {
	app, _ := newTestApp(t, 90, 5)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "clip one.mp4")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("fake video bytes")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/subtitles/videofile/generate", &body)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload generate = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	if mediaID, _ := payload["media_id"].(string); payload["status"] != "OK" || mediaID == "" {
		t.Fatalf("upload payload = %v", payload)
	}
}

func TestUploadRequiresFile(t *testing.T) {
	app, _ := newTestApp(t, 90, 5)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("note", "no file here")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/subtitles/videofile/generate", &body)
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	app.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file = %d, want 400", rec.Code)
	}
}
