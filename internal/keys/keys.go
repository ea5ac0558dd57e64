// Package keys derives the stable identifiers that make the generation
// pipeline idempotent: the same logical request always maps to the same
// storage key, so retries and repeats become upserts instead of duplicates.
package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// MediaIDForURL derives the media id for a remote video owned by a user.
func MediaIDForURL(videoURL, ownerID string) string {
	return hashRecord(struct {
		MediaURL string `json:"media_url"`
		UserID   string `json:"user_id"`
	}{videoURL, ownerID})
}

// MediaIDForUpload derives the media id for an uploaded file. The unique
// file id must carry a fresh token per upload attempt; file content is
// streamed once and never hashed.
func MediaIDForUpload(uniqueFileID, ownerID string) string {
	return hashRecord(struct {
		UniqueFileID string `json:"unique_file_id"`
		UserID       string `json:"user_id"`
	}{uniqueFileID, ownerID})
}

// SubtitleID derives the subtitle id for one media and language.
func SubtitleID(mediaID, language string) string {
	return hashRecord(struct {
		MediaID  string `json:"media_id"`
		Language string `json:"language"`
	}{mediaID, language})
}

// hashRecord serializes the record with fixed field order and hashes it.
// encoding/json emits struct fields in declaration order, which keeps the
// serialization canonical.
func hashRecord(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// Only reachable for unmarshalable types, which the fixed
		// record shapes above are not.
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewUploadToken returns a fresh uniqueness token for one upload attempt.
func NewUploadToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// UniqueUploadName sanitizes a client-supplied filename and appends the
// upload token so distinct attempts with the same name stay distinct.
func UniqueUploadName(filename, token string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "upload"
	}
	return sanitize(stem) + "-" + token + sanitize(ext)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
