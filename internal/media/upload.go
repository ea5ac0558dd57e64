package media

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"subgen/internal/domain"
	"subgen/internal/keys"
)

// UploadManager handles video files the client uploaded. The HTTP layer
// spools the upload to a local file before the pipeline sees it, since
// duration probing needs the whole container.
type UploadManager struct {
	ffmpeg *FFmpeg
	logger *slog.Logger
}

func NewUploadManager(ffmpeg *FFmpeg, logger *slog.Logger) *UploadManager {
	return &UploadManager{ffmpeg: ffmpeg, logger: logger}
}

// Resolve probes the spooled file for duration and a thumbnail frame. The
// media id derives from the sanitized filename plus the per-attempt token,
// not from file content.
func (m *UploadManager) Resolve(ctx context.Context, src Source, ownerID string) (*domain.Media, error) {
	uniqueName := keys.UniqueUploadName(src.UploadName, src.Token)

	duration, err := m.ffmpeg.Duration(ctx, src.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataFetch, err)
	}

	thumbnail, err := m.ffmpeg.Thumbnail(ctx, src.UploadPath)
	if err != nil {
		// A missing thumbnail does not block generation.
		m.logger.Warn("no thumbnail for upload", "file", uniqueName, "error", err)
		thumbnail = ""
	}

	return &domain.Media{
		ID:              keys.MediaIDForUpload(uniqueName, ownerID),
		OwnerID:         ownerID,
		Title:           uniqueName,
		DurationSeconds: int(math.Round(duration)),
		Source:          domain.SourceUpload,
		SourceURL:       src.UploadPath,
		ThumbnailURL:    thumbnail,
		Type:            domain.MediaTypeMP4,
		LocalPath:       src.UploadPath,
	}, nil
}

// Acquire is a no-op for uploads; the bytes are already local.
func (m *UploadManager) Acquire(_ context.Context, media *domain.Media) error {
	if media.Type != domain.MediaTypeMP4 {
		return fmt.Errorf("%w: acquiring %q is not supported", domain.ErrUnsupportedDownload, media.Type)
	}
	return nil
}

func (m *UploadManager) Convert(ctx context.Context, media *domain.Media, to domain.MediaType) error {
	return convertToAudio(ctx, m.ffmpeg, media, to)
}
