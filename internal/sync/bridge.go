// Package sync reconciles the in-memory store with the remote master
// document: load on sign-in with cache-then-seed fallback, full-document
// save after every mutation, and a live watch loop with echo suppression.
// Conflict policy is last-write-wins on the document's lastUpdate stamp;
// there is no field-level merge.
package sync

import (
	"context"
	"errors"
	"time"

	"suretakip/internal/cache"
	"suretakip/internal/domain"
	"suretakip/internal/logger"
	"suretakip/internal/seed"
	"suretakip/internal/store"
	suretakipsdk "suretakip/sdk/go"
)

// Remote is the slice of the SDK client the bridge needs; tests substitute
// an in-memory implementation.
type Remote interface {
	GetDocument(ctx context.Context) (*domain.Document, error)
	PutDocument(ctx context.Context, doc domain.Document) error
	WatchDocument(ctx context.Context, since string, timeout time.Duration) (*domain.Document, bool, error)
	ListUsers(ctx context.Context) ([]domain.AppUser, error)
}

const (
	defaultSaveAttempts = 3
	defaultRetryBase    = 500 * time.Millisecond
	defaultWatchTimeout = 30 * time.Second
	isoMillis           = "2006-01-02T15:04:05.000Z07:00"
)

// Bridge owns the client side of synchronization.
type Bridge struct {
	Client Remote
	Store  *store.Store
	Cache  *cache.Cache
	Log    logger.Logger
	// Actor is the signed-in user's email, written as updatedBy.
	Actor string
	Now   func() time.Time

	// SaveAttempts bounds the save retry loop; RetryBase is the initial
	// backoff, doubled per attempt.
	SaveAttempts int
	RetryBase    time.Duration
	WatchTimeout time.Duration

	// lastApplied is the stamp of the newest update this client has
	// written or accepted. Remote updates at or below it are echoes of
	// our own writes and are dropped. lastAppliedRaw keeps that stamp's
	// exact spelling: the server compares watch cursors by string, so
	// since must go back verbatim, never reformatted.
	lastApplied    time.Time
	lastAppliedRaw string
}

// New wires a bridge with defaults.
func New(client Remote, st *store.Store, c *cache.Cache, log logger.Logger, actor string) *Bridge {
	if log == nil {
		log = logger.Nop()
	}
	return &Bridge{
		Client:       client,
		Store:        st,
		Cache:        c,
		Log:          log,
		Actor:        actor,
		Now:          time.Now,
		SaveAttempts: defaultSaveAttempts,
		RetryBase:    defaultRetryBase,
		WatchTimeout: defaultWatchTimeout,
	}
}

func (b *Bridge) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// LastApplied returns the stamp of the newest applied update.
func (b *Bridge) LastApplied() time.Time { return b.lastApplied }

// Load populates the store: remote document first, then the local cache,
// then the bundled seed dataset. Degrades, never fails: a dead network on
// startup still yields a usable session.
func (b *Bridge) Load(ctx context.Context) {
	doc, err := b.Client.GetDocument(ctx)
	switch {
	case err == nil && doc != nil:
		b.applyDocument(*doc, true)
		b.Log.Info("loaded remote document",
			logger.Int("obligations", len(doc.Obligations)),
			logger.Int("jobs", len(doc.Jobs)),
			logger.String("updated_by", doc.UpdatedBy))
	case errors.Is(err, suretakipsdk.ErrNotFound):
		b.Log.Info("remote document does not exist yet")
		b.loadFallback()
	default:
		b.Log.Warn("remote load failed, falling back", logger.Error(err))
		b.loadFallback()
	}
	b.RefreshUsers(ctx)
}

func (b *Bridge) loadFallback() {
	if b.Cache != nil {
		obligations, jobs, projects, lastUpdate, ok := b.Cache.LoadCollections()
		if ok {
			b.Store.SetObligations(obligations)
			b.Store.SetJobs(jobs)
			b.Store.SetProjects(projects)
			// The cache keeps a parsed time; the regenerated spelling may
			// differ from the server's and gets corrected on the first
			// watch round trip.
			b.lastApplied = lastUpdate
			if !lastUpdate.IsZero() {
				b.lastAppliedRaw = lastUpdate.UTC().Format(isoMillis)
			}
			b.Log.Info("loaded cached data", logger.Int("obligations", len(obligations)))
			return
		}
	}
	obligations, projects, err := seed.Load(b.Now)
	if err != nil {
		b.Log.Error("seed dataset unavailable", logger.Error(err))
		return
	}
	b.Store.SetObligations(obligations)
	b.Store.SetProjects(projects)
	b.Log.Info("loaded seed dataset", logger.Int("obligations", len(obligations)))
}

// RefreshUsers pulls the users collection; failures are logged and the
// previous list kept.
func (b *Bridge) RefreshUsers(ctx context.Context) {
	users, err := b.Client.ListUsers(ctx)
	if err != nil {
		b.Log.Warn("user list refresh failed", logger.Error(err))
		return
	}
	b.Store.SetUsers(users)
}

// Save writes the local cache and pushes the full document with a fresh
// stamp. The push retries with exponential backoff; the stamp is recorded
// as applied up front so the echo of our own write is suppressed even when
// it arrives before the push call returns.
func (b *Bridge) Save(ctx context.Context) error {
	stamp := b.now().UTC()
	doc := b.snapshot(stamp)

	if b.Cache != nil {
		if err := b.Cache.SaveCollections(doc.Obligations, doc.Jobs, doc.Projects, stamp); err != nil {
			if errors.Is(err, cache.ErrStorageFull) {
				b.Log.Error("local cache full, data not cached", logger.Error(err))
			} else {
				b.Log.Error("local cache write failed", logger.Error(err))
			}
		}
	}

	b.lastApplied = stamp
	b.lastAppliedRaw = doc.LastUpdate

	var err error
	delay := b.RetryBase
	attempts := b.SaveAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = b.Client.PutDocument(ctx, doc); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt < attempts {
			b.Log.Warn("document push failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("backoff", delay),
				logger.Error(err))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return err
			}
			delay *= 2
		}
	}
	b.Log.Error("document push failed", logger.Error(err))
	return err
}

func (b *Bridge) snapshot(stamp time.Time) domain.Document {
	return domain.Document{
		Obligations: b.Store.Obligations,
		Jobs:        b.Store.Jobs,
		Projects:    b.Store.Projects,
		LastUpdate:  stamp.Format(isoMillis),
		UpdatedBy:   b.Actor,
	}
}

// ApplyRemote merges an incoming document. Updates not strictly newer than
// the last applied stamp are echoes (or stale) and leave the store
// untouched. Reports whether anything was applied.
func (b *Bridge) ApplyRemote(doc domain.Document) bool {
	return b.applyDocument(doc, false)
}

func (b *Bridge) applyDocument(doc domain.Document, initial bool) bool {
	stamp, ok := parseStamp(doc.LastUpdate)
	if !ok {
		b.Log.Warn("remote document carries no usable lastUpdate", logger.String("raw", doc.LastUpdate))
		if !initial {
			return false
		}
	}
	if !initial && !stamp.After(b.lastApplied) {
		// Same instant, different spelling (plain RFC3339, nanoseconds).
		// Adopt the document's spelling so the next watch cursor matches
		// the stored stamp instead of re-fetching forever.
		if ok && stamp.Equal(b.lastApplied) && doc.LastUpdate != "" {
			b.lastAppliedRaw = doc.LastUpdate
		}
		return false
	}
	b.Store.SetObligations(doc.Obligations)
	b.Store.SetJobs(doc.Jobs)
	b.Store.SetProjects(doc.Projects)
	b.lastApplied = stamp
	b.lastAppliedRaw = doc.LastUpdate
	if b.Cache != nil {
		if err := b.Cache.SaveCollections(doc.Obligations, doc.Jobs, doc.Projects, stamp); err != nil {
			b.Log.Error("cache refresh failed", logger.Error(err))
		}
	}
	b.Store.NotifyRefresh()
	return true
}

func parseStamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Subscribe starts the live watch loop and returns a stop function. The
// subscription is scoped to the session: acquire after sign-in, call stop
// on sign-out so no listener leaks across sessions.
func (b *Bridge) Subscribe(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		backoff := b.RetryBase
		for {
			if ctx.Err() != nil {
				return
			}
			doc, changed, err := b.Client.WatchDocument(ctx, b.sinceString(), b.WatchTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.Log.Warn("watch failed, backing off", logger.Duration("backoff", backoff), logger.Error(err))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
				continue
			}
			backoff = b.RetryBase
			if changed && doc != nil {
				if b.ApplyRemote(*doc) {
					b.Log.Info("applied remote update", logger.String("updated_by", doc.UpdatedBy))
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (b *Bridge) sinceString() string {
	return b.lastAppliedRaw
}
