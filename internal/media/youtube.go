package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	yt "github.com/kkdai/youtube/v2"

	"subgen/internal/domain"
	"subgen/internal/keys"
)

// YouTubeManager handles remote YouTube sources.
type YouTubeManager struct {
	client yt.Client
	ffmpeg *FFmpeg
	logger *slog.Logger
}

func NewYouTubeManager(ffmpeg *FFmpeg, logger *slog.Logger) *YouTubeManager {
	return &YouTubeManager{ffmpeg: ffmpeg, logger: logger}
}

// Resolve fetches lightweight metadata for the video without downloading
// content.
func (m *YouTubeManager) Resolve(ctx context.Context, src Source, ownerID string) (*domain.Media, error) {
	if !IsSupportedURL(src.URL) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, src.URL)
	}

	video, err := m.client.GetVideoContext(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataFetch, err)
	}

	media := &domain.Media{
		ID:              keys.MediaIDForURL(src.URL, ownerID),
		OwnerID:         ownerID,
		Title:           video.Title,
		DurationSeconds: int(video.Duration.Seconds()),
		Source:          domain.SourceYouTube,
		SourceURL:       src.URL,
		Type:            domain.MediaTypeMP4,
	}
	if len(video.Thumbnails) > 0 {
		media.ThumbnailURL = video.Thumbnails[0].URL
	}
	return media, nil
}

// Acquire downloads the highest-quality progressive mp4 stream into the
// media workdir.
func (m *YouTubeManager) Acquire(ctx context.Context, media *domain.Media) error {
	if media.Type != domain.MediaTypeMP4 {
		return fmt.Errorf("%w: downloading %q is not supported", domain.ErrUnsupportedDownload, media.Type)
	}

	video, err := m.client.GetVideoContext(ctx, media.SourceURL)
	if err != nil {
		return fmt.Errorf("resolve video for download: %w", err)
	}

	formats := video.Formats.Type("video/mp4").WithAudioChannels()
	if len(formats) == 0 {
		return fmt.Errorf("%w: no progressive mp4 stream available", domain.ErrUnsupportedDownload)
	}
	formats.Sort()

	stream, _, err := m.client.GetStreamContext(ctx, video, &formats[0])
	if err != nil {
		return fmt.Errorf("open video stream: %w", err)
	}
	defer stream.Close()

	localPath := filepath.Join(media.Workdir, media.ID+".mp4")
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, stream); err != nil {
		return fmt.Errorf("download video: %w", err)
	}

	media.LocalPath = localPath
	m.logger.Info("video downloaded", "media_id", media.ID, "path", localPath)
	return nil
}

// Convert transforms the downloaded container to the audio target.
func (m *YouTubeManager) Convert(ctx context.Context, media *domain.Media, to domain.MediaType) error {
	return convertToAudio(ctx, m.ffmpeg, media, to)
}

// convertToAudio is the single supported conversion path, shared by all
// source managers.
func convertToAudio(ctx context.Context, ffmpeg *FFmpeg, media *domain.Media, to domain.MediaType) error {
	if to != domain.MediaTypeMP3 {
		return fmt.Errorf("%w: converting to %q is not supported", domain.ErrUnsupportedConversion, to)
	}
	if media.Type != domain.MediaTypeMP4 {
		return fmt.Errorf("%w: converting from %q is not supported", domain.ErrUnsupportedConversion, media.Type)
	}

	outputPath := filepath.Join(media.Workdir, media.ID+".mp3")
	if err := ffmpeg.ExtractAudio(ctx, media.LocalPath, outputPath); err != nil {
		return err
	}

	media.LocalPath = outputPath
	media.Type = domain.MediaTypeMP3
	return nil
}
