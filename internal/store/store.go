// Package store persists generation results and accounts in a schema-less
// document store keyed by derived ids, so writes are upserts and repeats of
// the same logical request overwrite instead of duplicating.
package store

import (
	"context"
	"time"
)

// MediaRecord is the persisted projection of a processed media asset.
type MediaRecord struct {
	ID              string    `firestore:"id" json:"id"`
	UserID          string    `firestore:"user_id" json:"user_id"`
	Title           string    `firestore:"title" json:"title"`
	DurationSeconds int       `firestore:"duration" json:"duration"`
	MediaURL        string    `firestore:"media_url" json:"media_url"`
	MediaSource     string    `firestore:"media_source" json:"media_source"`
	ThumbnailURL    string    `firestore:"thumbnail_url" json:"thumbnail_url"`
	CreatedAt       time.Time `firestore:"created_at" json:"created_at"`
}

// SubtitleRecord is one stored subtitle track.
type SubtitleRecord struct {
	ID        string    `firestore:"id" json:"id"`
	MediaID   string    `firestore:"media_id" json:"media_id"`
	Content   string    `firestore:"content" json:"content"`
	Language  string    `firestore:"language" json:"language"`
	CreatedAt time.Time `firestore:"created_at" json:"created_at"`
	ExpireAt  time.Time `firestore:"expire_at" json:"expire_at"`
}

// AccountRecord is the stored user account.
type AccountRecord struct {
	ID          string    `firestore:"id" json:"id"`
	Credits     int       `firestore:"credits" json:"credits"`
	DisplayName string    `firestore:"displayName" json:"displayName"`
	Email       string    `firestore:"email" json:"email"`
	CreatedAt   time.Time `firestore:"createdAt" json:"createdAt"`
}

// Job states persisted for in-flight and failed generations.
const (
	JobRunning = "running"
	JobFailed  = "failed"
)

// JobRecord tracks one generation attempt so the status read path can tell
// "still running" from "failed" instead of reporting pending forever.
type JobRecord struct {
	MediaID   string    `firestore:"media_id" json:"media_id"`
	State     string    `firestore:"state" json:"state"`
	Reason    string    `firestore:"reason" json:"reason"`
	UpdatedAt time.Time `firestore:"updated_at" json:"updated_at"`
}

// HistoryRow is one flattened (media, subtitle) pair.
type HistoryRow struct {
	Media    MediaRecord
	Subtitle SubtitleRecord
}

// Datastore is the narrow contract the pipeline needs from the document
// store. All writes keyed by id are upserts.
type Datastore interface {
	UpsertMedia(ctx context.Context, media MediaRecord) error
	GetMedia(ctx context.Context, id string) (*MediaRecord, error)

	UpsertSubtitle(ctx context.Context, subtitle SubtitleRecord) error
	GetSubtitleForMedia(ctx context.Context, mediaID string) (*SubtitleRecord, error)

	UpsertAccount(ctx context.Context, account AccountRecord) error
	GetAccount(ctx context.Context, id string) (*AccountRecord, error)

	// DebitCredits atomically re-checks the balance and subtracts amount,
	// failing with domain.ErrInsufficientCredits rather than persisting a
	// negative balance. Returns the remaining credits.
	DebitCredits(ctx context.Context, accountID string, amount int) (int, error)

	// History returns (media, subtitle) rows for a user ordered by media
	// creation time descending. lastCreatedAt is an exclusive upper bound
	// for cursor pagination; limit caps the number of media scanned.
	History(ctx context.Context, userID string, lastCreatedAt *time.Time, limit int) ([]HistoryRow, error)

	SetJob(ctx context.Context, job JobRecord) error
	GetJob(ctx context.Context, mediaID string) (*JobRecord, error)
	ClearJob(ctx context.Context, mediaID string) error
}
