// Package media resolves, acquires and converts video sources into audio
// tracks ready for transcription. Each source variant (remote URL, uploaded
// file) implements the same capability interface.
package media

import (
	"context"
	"net/url"
	"strings"

	"subgen/internal/domain"
)

// Source is the tagged variant describing where a video comes from.
type Source struct {
	Kind domain.SourceKind

	// Remote source.
	URL string

	// Uploaded source, already spooled to a local file by the HTTP layer.
	UploadPath string
	UploadName string
	// Token is the per-attempt uniqueness token for uploads.
	Token string
}

// Manager covers the lifecycle of one source variant.
type Manager interface {
	// Resolve produces a media descriptor with identity and lightweight
	// metadata (title, duration, thumbnail) without downloading content.
	Resolve(ctx context.Context, src Source, ownerID string) (*domain.Media, error)

	// Acquire materializes the asset at media.LocalPath inside
	// media.Workdir. A no-op for already-local uploads.
	Acquire(ctx context.Context, media *domain.Media) error

	// Convert transforms the local file to the target type in place.
	// Only the container-to-audio path is supported.
	Convert(ctx context.Context, media *domain.Media, to domain.MediaType) error
}

// IsSupportedURL reports whether a raw URL is well formed and belongs to a
// supported provider. It is a cheap syntactic check run before any network
// call.
func IsSupportedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtu.be":
		return true
	default:
		return false
	}
}
