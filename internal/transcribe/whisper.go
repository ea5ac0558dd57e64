package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultWhisperURL = "https://api.openai.com/v1/audio/transcriptions"

// WhisperAPI transcribes audio through the OpenAI audio.transcriptions
// endpoint, requesting verbose output so segment timings and the detected
// language come back with the text.
type WhisperAPI struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewWhisperAPI(apiKey, model, baseURL string) *WhisperAPI {
	if model == "" {
		model = "whisper-1"
	}
	if baseURL == "" {
		baseURL = defaultWhisperURL
	}
	return &WhisperAPI{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Minute},
	}
}

type whisperSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type whisperResponse struct {
	Language string           `json:"language"`
	Text     string           `json:"text"`
	Segments []whisperSegment `json:"segments"`
}

func (w *WhisperAPI) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", w.model); err != nil {
		return Result{}, err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return Result{}, err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Result{}, fmt.Errorf("copy audio into request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("transcription http %d: %s", resp.StatusCode, detail)
	}

	var decoded whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode transcription response: %w", err)
	}

	result := Result{Language: decoded.Language}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, Segment(seg))
	}
	if len(result.Segments) == 0 && decoded.Text != "" {
		// Some formats return only the full text; keep it as one cue.
		result.Segments = []Segment{{Text: decoded.Text}}
	}
	return result, nil
}
