package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"subgen/internal/domain"
)

// Memory is an in-process Datastore used by tests and local development.
type Memory struct {
	mu        sync.RWMutex
	media     map[string]MediaRecord
	subtitles map[string]SubtitleRecord
	accounts  map[string]AccountRecord
	jobs      map[string]JobRecord
}

func NewMemory() *Memory {
	return &Memory{
		media:     make(map[string]MediaRecord),
		subtitles: make(map[string]SubtitleRecord),
		accounts:  make(map[string]AccountRecord),
		jobs:      make(map[string]JobRecord),
	}
}

func (m *Memory) UpsertMedia(_ context.Context, media MediaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media[media.ID] = media
	return nil
}

func (m *Memory) GetMedia(_ context.Context, id string) (*MediaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	media, ok := m.media[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &media, nil
}

func (m *Memory) UpsertSubtitle(_ context.Context, subtitle SubtitleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subtitles[subtitle.ID] = subtitle
	return nil
}

func (m *Memory) GetSubtitleForMedia(_ context.Context, mediaID string) (*SubtitleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, subtitle := range m.subtitles {
		if subtitle.MediaID == mediaID {
			s := subtitle
			return &s, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *Memory) UpsertAccount(_ context.Context, account AccountRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (*AccountRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

func (m *Memory) DebitCredits(_ context.Context, accountID string, amount int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[accountID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if account.Credits-amount < 0 {
		return account.Credits, domain.ErrInsufficientCredits
	}
	account.Credits -= amount
	m.accounts[accountID] = account
	return account.Credits, nil
}

func (m *Memory) History(_ context.Context, userID string, lastCreatedAt *time.Time, limit int) ([]HistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var medias []MediaRecord
	for _, media := range m.media {
		if media.UserID != userID {
			continue
		}
		if lastCreatedAt != nil && !media.CreatedAt.Before(*lastCreatedAt) {
			continue
		}
		medias = append(medias, media)
	}
	sort.Slice(medias, func(i, j int) bool {
		return medias[i].CreatedAt.After(medias[j].CreatedAt)
	})
	if limit > 0 && len(medias) > limit {
		medias = medias[:limit]
	}

	var rows []HistoryRow
	for _, media := range medias {
		for _, subtitle := range m.subtitles {
			if subtitle.MediaID == media.ID {
				rows = append(rows, HistoryRow{Media: media, Subtitle: subtitle})
			}
		}
	}
	return rows, nil
}

func (m *Memory) SetJob(_ context.Context, job JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.MediaID] = job
	return nil
}

func (m *Memory) GetJob(_ context.Context, mediaID string) (*JobRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[mediaID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &job, nil
}

func (m *Memory) ClearJob(_ context.Context, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, mediaID)
	return nil
}
