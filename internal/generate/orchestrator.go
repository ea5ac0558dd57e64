// Package generate coordinates the subtitle generation pipeline: resolve
// metadata, authorize by credit, then acquire, convert, transcribe and
// persist off the calling request's lifetime.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"subgen/internal/auth"
	"subgen/internal/credits"
	"subgen/internal/domain"
	"subgen/internal/keys"
	"subgen/internal/media"
	"subgen/internal/store"
	"subgen/internal/transcribe"
)

// Config bounds the pipeline's policies and resources.
type Config struct {
	SecondsPerCredit   int
	MaxDurationSeconds int
	StartingCredits    int
	Workers            int
	QueueSize          int
	HistoryPageSize    int
	Retention          time.Duration
	TempDir            string
}

func (c Config) withDefaults() Config {
	if c.SecondsPerCredit <= 0 {
		c.SecondsPerCredit = credits.DefaultSecondsPerCredit
	}
	if c.MaxDurationSeconds <= 0 {
		c.MaxDurationSeconds = 600
	}
	if c.StartingCredits <= 0 {
		c.StartingCredits = 5
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = c.Workers * 8
	}
	if c.HistoryPageSize <= 0 {
		c.HistoryPageSize = 100
	}
	if c.Retention <= 0 {
		c.Retention = 10 * 24 * time.Hour
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	return c
}

type job struct {
	media    *domain.Media
	src      media.Source
	required int
}

// Orchestrator runs the generation state machine over a bounded worker
// pool. The synchronous phase (resolve, authorize) reports failures to the
// caller; the asynchronous phase records failures as job status.
type Orchestrator struct {
	logger   *slog.Logger
	store    store.Datastore
	managers map[domain.SourceKind]media.Manager
	engine   transcribe.Engine
	ledger   credits.Ledger
	cfg      Config

	jobs chan job

	mu        sync.Mutex
	inflight  map[string]struct{}
	cancel    context.CancelFunc
	draining  bool
	producers sync.WaitGroup
	wg        sync.WaitGroup

	now func() time.Time
}

func New(
	logger *slog.Logger,
	datastore store.Datastore,
	managers map[domain.SourceKind]media.Manager,
	engine transcribe.Engine,
	cfg Config,
) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		logger:   logger,
		store:    datastore,
		managers: managers,
		engine:   engine,
		ledger:   credits.NewLedger(cfg.SecondsPerCredit),
		cfg:      cfg,
		jobs:     make(chan job, cfg.QueueSize),
		inflight: make(map[string]struct{}),
		now:      time.Now,
	}
}

// Start launches the worker pool.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	ctx, o.cancel = context.WithCancel(ctx)
	o.mu.Unlock()

	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx)
	}
	return nil
}

// Stop drains the pool: no new submissions are accepted, queued and running
// jobs finish, then the workers exit. Only after the drain does the worker
// context get cancelled.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.cancel == nil {
		o.mu.Unlock()
		return
	}
	cancel := o.cancel
	o.cancel = nil
	o.draining = true
	o.mu.Unlock()

	o.producers.Wait()
	close(o.jobs)
	o.wg.Wait()
	cancel()
}

func (o *Orchestrator) worker(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-o.jobs:
			if !ok {
				return
			}
			o.process(ctx, j)
		}
	}
}

// Account returns the stored account for an identity, creating it with the
// starting credit balance on first contact.
func (o *Orchestrator) Account(ctx context.Context, ident auth.Identity) (store.AccountRecord, error) {
	account, err := o.store.GetAccount(ctx, ident.UID)
	if err == nil {
		return *account, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return store.AccountRecord{}, err
	}

	created := store.AccountRecord{
		ID:          ident.UID,
		Credits:     o.cfg.StartingCredits,
		DisplayName: ident.DisplayName,
		Email:       ident.Email,
		CreatedAt:   o.now().UTC(),
	}
	if err := o.store.UpsertAccount(ctx, created); err != nil {
		return store.AccountRecord{}, fmt.Errorf("bootstrap account %s: %w", ident.UID, err)
	}
	o.logger.Info("account created", "user_id", ident.UID, "credits", created.Credits)
	return created, nil
}

// Generate runs the synchronous phase and, on success, enqueues the heavy
// work. It returns the derived media id so the client can poll status.
// A request for a media id that is already in flight is acknowledged
// without launching a second job.
func (o *Orchestrator) Generate(ctx context.Context, src media.Source, ident auth.Identity) (string, error) {
	mgr, ok := o.managers[src.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, src.Kind)
	}

	account, err := o.Account(ctx, ident)
	if err != nil {
		return "", err
	}

	m, err := mgr.Resolve(ctx, src, ident.UID)
	if err != nil {
		return "", err
	}

	if m.DurationSeconds > o.cfg.MaxDurationSeconds {
		return "", fmt.Errorf("%w: %ds > %ds", domain.ErrDurationOverLimit, m.DurationSeconds, o.cfg.MaxDurationSeconds)
	}

	required := o.ledger.Required(m.DurationSeconds)
	if !o.ledger.CanAfford(account.Credits, required) {
		return "", fmt.Errorf("%w: need %d, have %d", domain.ErrInsufficientCredits, required, account.Credits)
	}

	o.mu.Lock()
	if o.draining {
		o.mu.Unlock()
		return "", errors.New("generation pipeline is shutting down")
	}
	if _, running := o.inflight[m.ID]; running {
		o.mu.Unlock()
		o.logger.Info("generation already in flight", "media_id", m.ID)
		return m.ID, nil
	}
	o.inflight[m.ID] = struct{}{}
	// Registered before unlocking so Stop cannot close the queue between
	// the drain check and the send below.
	o.producers.Add(1)
	o.mu.Unlock()
	defer o.producers.Done()

	if err := o.store.SetJob(ctx, store.JobRecord{
		MediaID:   m.ID,
		State:     store.JobRunning,
		UpdatedAt: o.now().UTC(),
	}); err != nil {
		o.logger.Error("recording job start failed", "media_id", m.ID, "error", err)
	}

	select {
	case o.jobs <- job{media: m, src: src, required: required}:
		o.logger.Info("generation accepted", "media_id", m.ID, "duration_s", m.DurationSeconds, "required_credits", required)
		return m.ID, nil
	case <-ctx.Done():
		o.release(m.ID)
		_ = o.store.ClearJob(context.WithoutCancel(ctx), m.ID)
		return "", ctx.Err()
	}
}

func (o *Orchestrator) release(mediaID string) {
	o.mu.Lock()
	delete(o.inflight, mediaID)
	o.mu.Unlock()
}

// process is the asynchronous phase: acquire, convert, transcribe, persist,
// debit. Failures are recorded as job status and never resurface to the
// original caller.
func (o *Orchestrator) process(ctx context.Context, j job) {
	m := j.media
	defer o.release(m.ID)

	if j.src.Kind == domain.SourceUpload && j.src.UploadPath != "" {
		defer os.Remove(j.src.UploadPath)
	}

	workdir, err := os.MkdirTemp(o.cfg.TempDir, "subgen-*")
	if err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("create workdir: %w", err))
		return
	}
	defer os.RemoveAll(workdir)
	m.Workdir = workdir

	mgr := o.managers[m.Source]

	if err := mgr.Acquire(ctx, m); err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("acquire: %w", err))
		return
	}
	if err := mgr.Convert(ctx, m, domain.MediaTypeMP3); err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("convert: %w", err))
		return
	}

	result, err := o.engine.Transcribe(ctx, m.LocalPath)
	if err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("transcribe: %w", err))
		return
	}

	o.persist(ctx, m, j.required, result)
}

// persist writes the media projection and the subtitle, then debits the
// account. The debit is deliberately last: if it fails after the content
// writes succeeded, the subtitle stays available and the user keeps the
// credits.
func (o *Orchestrator) persist(ctx context.Context, m *domain.Media, required int, result transcribe.Result) {
	now := o.now().UTC()

	mediaRecord := store.MediaRecord{
		ID:              m.ID,
		UserID:          m.OwnerID,
		Title:           m.Title,
		DurationSeconds: m.DurationSeconds,
		MediaURL:        m.SourceURL,
		MediaSource:     string(m.Source),
		ThumbnailURL:    m.ThumbnailURL,
		CreatedAt:       now,
	}
	subtitleRecord := store.SubtitleRecord{
		ID:        keys.SubtitleID(m.ID, result.Language),
		MediaID:   m.ID,
		Content:   transcribe.RenderSRT(result.Segments),
		Language:  result.Language,
		CreatedAt: now,
		ExpireAt:  now.Add(o.cfg.Retention),
	}

	if err := o.store.UpsertMedia(ctx, mediaRecord); err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("persist media: %w", err))
		return
	}
	if err := o.store.UpsertSubtitle(ctx, subtitleRecord); err != nil {
		o.fail(ctx, m.ID, fmt.Errorf("persist subtitle: %w", err))
		return
	}

	if _, err := o.store.DebitCredits(ctx, m.OwnerID, required); err != nil {
		// The subtitle is already durable; favor the user and only log.
		o.logger.Error("debit after persist failed", "media_id", m.ID, "user_id", m.OwnerID, "error", err)
	}

	if err := o.store.ClearJob(ctx, m.ID); err != nil {
		o.logger.Warn("clearing job record failed", "media_id", m.ID, "error", err)
	}
	o.logger.Info("generation completed", "media_id", m.ID, "language", result.Language)
}

func (o *Orchestrator) fail(ctx context.Context, mediaID string, err error) {
	o.logger.Error("generation failed", "media_id", mediaID, "error", err)
	if setErr := o.store.SetJob(ctx, store.JobRecord{
		MediaID:   mediaID,
		State:     store.JobFailed,
		Reason:    err.Error(),
		UpdatedAt: o.now().UTC(),
	}); setErr != nil {
		o.logger.Error("recording job failure failed", "media_id", mediaID, "error", setErr)
	}
}
