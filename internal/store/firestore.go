package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"subgen/internal/domain"
)

const (
	mediaCollection    = "media"
	subtitleCollection = "subtitles"
	userCollection     = "users"
	jobCollection      = "jobs"
)

// Firestore implements Datastore on Cloud Firestore.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) UpsertMedia(ctx context.Context, media MediaRecord) error {
	_, err := f.client.Collection(mediaCollection).Doc(media.ID).Set(ctx, media)
	if err != nil {
		return fmt.Errorf("upsert media %s: %w", media.ID, err)
	}
	return nil
}

func (f *Firestore) GetMedia(ctx context.Context, id string) (*MediaRecord, error) {
	snap, err := f.client.Collection(mediaCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get media %s: %w", id, err)
	}
	var media MediaRecord
	if err := snap.DataTo(&media); err != nil {
		return nil, fmt.Errorf("decode media %s: %w", id, err)
	}
	return &media, nil
}

func (f *Firestore) UpsertSubtitle(ctx context.Context, subtitle SubtitleRecord) error {
	_, err := f.client.Collection(subtitleCollection).Doc(subtitle.ID).Set(ctx, subtitle)
	if err != nil {
		return fmt.Errorf("upsert subtitle %s: %w", subtitle.ID, err)
	}
	return nil
}

func (f *Firestore) GetSubtitleForMedia(ctx context.Context, mediaID string) (*SubtitleRecord, error) {
	iter := f.client.Collection(subtitleCollection).
		Where("media_id", "==", mediaID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query subtitle for media %s: %w", mediaID, err)
	}
	var subtitle SubtitleRecord
	if err := snap.DataTo(&subtitle); err != nil {
		return nil, fmt.Errorf("decode subtitle for media %s: %w", mediaID, err)
	}
	return &subtitle, nil
}

// subtitlesForMedia returns every stored track for one media. A media can
// carry several subtitles when repeated runs detected different languages.
func (f *Firestore) subtitlesForMedia(ctx context.Context, mediaID string) ([]SubtitleRecord, error) {
	iter := f.client.Collection(subtitleCollection).
		Where("media_id", "==", mediaID).
		Documents(ctx)
	defer iter.Stop()

	var subtitles []SubtitleRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query subtitles for media %s: %w", mediaID, err)
		}
		var subtitle SubtitleRecord
		if err := snap.DataTo(&subtitle); err != nil {
			return nil, fmt.Errorf("decode subtitle for media %s: %w", mediaID, err)
		}
		subtitles = append(subtitles, subtitle)
	}
	return subtitles, nil
}

func (f *Firestore) UpsertAccount(ctx context.Context, account AccountRecord) error {
	_, err := f.client.Collection(userCollection).Doc(account.ID).Set(ctx, account)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", account.ID, err)
	}
	return nil
}

func (f *Firestore) GetAccount(ctx context.Context, id string) (*AccountRecord, error) {
	snap, err := f.client.Collection(userCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	var account AccountRecord
	if err := snap.DataTo(&account); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", id, err)
	}
	return &account, nil
}

// DebitCredits runs the read-check-write inside a transaction so concurrent
// generations for the same user cannot drive the balance negative.
func (f *Firestore) DebitCredits(ctx context.Context, accountID string, amount int) (int, error) {
	ref := f.client.Collection(userCollection).Doc(accountID)
	var remaining int
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return domain.ErrNotFound
			}
			return err
		}
		var account AccountRecord
		if err := snap.DataTo(&account); err != nil {
			return err
		}
		if account.Credits-amount < 0 {
			return domain.ErrInsufficientCredits
		}
		account.Credits -= amount
		remaining = account.Credits
		return tx.Set(ref, account)
	})
	if err != nil {
		return 0, fmt.Errorf("debit %d credits from %s: %w", amount, accountID, err)
	}
	return remaining, nil
}

func (f *Firestore) History(ctx context.Context, userID string, lastCreatedAt *time.Time, limit int) ([]HistoryRow, error) {
	query := f.client.Collection(mediaCollection).
		Where("user_id", "==", userID).
		OrderBy("created_at", firestore.Desc)
	if lastCreatedAt != nil {
		query = query.StartAfter(*lastCreatedAt)
	}

	iter := query.Limit(limit).Documents(ctx)
	defer iter.Stop()

	var rows []HistoryRow
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query history for %s: %w", userID, err)
		}
		var media MediaRecord
		if err := snap.DataTo(&media); err != nil {
			return nil, fmt.Errorf("decode history media: %w", err)
		}
		subtitles, err := f.subtitlesForMedia(ctx, media.ID)
		if err != nil {
			return nil, err
		}
		for _, subtitle := range subtitles {
			rows = append(rows, HistoryRow{Media: media, Subtitle: subtitle})
		}
	}
	return rows, nil
}

func (f *Firestore) SetJob(ctx context.Context, job JobRecord) error {
	_, err := f.client.Collection(jobCollection).Doc(job.MediaID).Set(ctx, job)
	if err != nil {
		return fmt.Errorf("set job %s: %w", job.MediaID, err)
	}
	return nil
}

func (f *Firestore) GetJob(ctx context.Context, mediaID string) (*JobRecord, error) {
	snap, err := f.client.Collection(jobCollection).Doc(mediaID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", mediaID, err)
	}
	var job JobRecord
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", mediaID, err)
	}
	return &job, nil
}

func (f *Firestore) ClearJob(ctx context.Context, mediaID string) error {
	_, err := f.client.Collection(jobCollection).Doc(mediaID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("clear job %s: %w", mediaID, err)
	}
	return nil
}
