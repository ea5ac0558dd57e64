package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"subgen/internal/domain"
)

func TestMemoryUpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	media := MediaRecord{ID: "m1", UserID: "u1", Title: "first", CreatedAt: time.Now()}
	if err := m.UpsertMedia(ctx, media); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	media.Title = "second"
	if err := m.UpsertMedia(ctx, media); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := m.GetMedia(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "second" {
		t.Fatalf("upsert did not overwrite, title = %q", got.Title)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.GetMedia(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.GetJob(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDebitCredits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	account := AccountRecord{
		ID:          "u1",
		Credits:     2,
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
		CreatedAt:   time.Now(),
	}
	if err := m.UpsertAccount(ctx, account); err != nil {
		t.Fatalf("upsert account: %v", err)
	}

	remaining, err := m.DebitCredits(ctx, "u1", 2)
	if err != nil || remaining != 0 {
		t.Fatalf("debit = (%d, %v), want (0, nil)", remaining, err)
	}

	if _, err := m.DebitCredits(ctx, "u1", 1); !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}

	got, err := m.GetAccount(ctx, "u1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Credits != 0 {
		t.Fatalf("failed debit changed the balance: %d", got.Credits)
	}
}

func TestMemoryHistoryOrderAndCursor(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		mediaID := string(rune('a' + i))
		created := base.Add(time.Duration(i) * time.Hour)
		if err := m.UpsertMedia(ctx, MediaRecord{
			ID:        mediaID,
			UserID:    "u1",
			Title:     gofakeit.Sentence(3),
			CreatedAt: created,
		}); err != nil {
			t.Fatalf("upsert media: %v", err)
		}
		if err := m.UpsertSubtitle(ctx, SubtitleRecord{
			ID:        "sub-" + mediaID,
			MediaID:   mediaID,
			Content:   gofakeit.Sentence(10),
			Language:  "en",
			CreatedAt: created,
		}); err != nil {
			t.Fatalf("upsert subtitle: %v", err)
		}
	}

	page, err := m.History(ctx, "u1", nil, 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	if !page[0].Media.CreatedAt.After(page[1].Media.CreatedAt) {
		t.Fatal("history not ordered by descending creation time")
	}

	cursor := page[len(page)-1].Media.CreatedAt
	next, err := m.History(ctx, "u1", &cursor, 2)
	if err != nil {
		t.Fatalf("history page 2: %v", err)
	}
	for _, row := range next {
		if !row.Media.CreatedAt.Before(cursor) {
			t.Fatalf("cursor page returned entry not strictly older than %v", cursor)
		}
	}
}

func TestMemoryHistoryFlattensAllSubtitlesPerMedia(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	created := time.Now()
	_ = m.UpsertMedia(ctx, MediaRecord{ID: "m1", UserID: "u1", CreatedAt: created})
	// Repeated runs of the same media can detect different languages; each
	// track is a distinct record and history carries one row per track.
	_ = m.UpsertSubtitle(ctx, SubtitleRecord{ID: "s-en", MediaID: "m1", Language: "en", CreatedAt: created})
	_ = m.UpsertSubtitle(ctx, SubtitleRecord{ID: "s-de", MediaID: "m1", Language: "de", CreatedAt: created})

	rows, err := m.History(ctx, "u1", nil, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("history rows = %d, want one per subtitle", len(rows))
	}
	languages := map[string]bool{}
	for _, row := range rows {
		if row.Media.ID != "m1" {
			t.Fatalf("row carries wrong media: %+v", row.Media)
		}
		languages[row.Subtitle.Language] = true
	}
	if !languages["en"] || !languages["de"] {
		t.Fatalf("history dropped a track: %v", languages)
	}
}

func TestMemoryHistoryIgnoresOtherUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.UpsertMedia(ctx, MediaRecord{ID: "m1", UserID: "other", CreatedAt: time.Now()})
	_ = m.UpsertSubtitle(ctx, SubtitleRecord{ID: "s1", MediaID: "m1"})

	rows, err := m.History(ctx, "u1", nil, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("history leaked %d rows across users", len(rows))
	}
}

func TestMemoryJobLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	job := JobRecord{MediaID: "m1", State: JobRunning, UpdatedAt: time.Now()}
	if err := m.SetJob(ctx, job); err != nil {
		t.Fatalf("set job: %v", err)
	}
	got, err := m.GetJob(ctx, "m1")
	if err != nil || got.State != JobRunning {
		t.Fatalf("get job = (%+v, %v)", got, err)
	}
	if err := m.ClearJob(ctx, "m1"); err != nil {
		t.Fatalf("clear job: %v", err)
	}
	if _, err := m.GetJob(ctx, "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("job survived clear: %v", err)
	}
}
