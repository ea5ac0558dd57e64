package generate

import (
	"context"
	"errors"
	"time"

	"subgen/internal/domain"
	"subgen/internal/store"
)

// Status is the read-path view of one generation.
type Status struct {
	Media    *store.MediaRecord
	Subtitle *store.SubtitleRecord
	Job      *store.JobRecord
}

// Done reports whether both the media projection and the subtitle are
// durably stored.
func (s Status) Done() bool {
	return s.Media != nil && s.Subtitle != nil
}

// Failed reports whether the asynchronous phase recorded a failure.
func (s Status) Failed() bool {
	return !s.Done() && s.Job != nil && s.Job.State == store.JobFailed
}

// GetStatus reads the persisted store directly; it never touches the
// in-memory pipeline state.
func (o *Orchestrator) GetStatus(ctx context.Context, mediaID string) (Status, error) {
	var status Status

	mediaRecord, err := o.store.GetMedia(ctx, mediaID)
	switch {
	case err == nil:
		status.Media = mediaRecord
	case errors.Is(err, domain.ErrNotFound):
	default:
		return Status{}, err
	}

	if status.Media != nil {
		subtitle, err := o.store.GetSubtitleForMedia(ctx, mediaID)
		switch {
		case err == nil:
			status.Subtitle = subtitle
		case errors.Is(err, domain.ErrNotFound):
		default:
			return Status{}, err
		}
	}

	if !status.Done() {
		job, err := o.store.GetJob(ctx, mediaID)
		switch {
		case err == nil:
			status.Job = job
		case errors.Is(err, domain.ErrNotFound):
		default:
			return Status{}, err
		}
	}

	return status, nil
}

// History returns flattened (media, subtitle) rows for a user, newest
// first. lastCreatedAt is the exclusive cursor for the next page; a
// non-positive count falls back to the configured page size.
func (o *Orchestrator) History(ctx context.Context, userID string, lastCreatedAt *time.Time, count int) ([]store.HistoryRow, error) {
	if count <= 0 {
		count = o.cfg.HistoryPageSize
	}
	return o.store.History(ctx, userID, lastCreatedAt, count)
}
