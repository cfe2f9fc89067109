package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"suretakip/internal/logger"
)

// redisChannel carries document stamps between server instances so a
// write on one instance wakes watchers on all of them.
const redisChannel = "suretakip:document"

// maxWatchSeconds bounds the client-requested long-poll window.
const maxWatchSeconds = 120

// Notifier fans document-changed stamps out to long-poll watchers, and
// across instances through Redis when configured.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan string]struct{}

	rdb *redis.Client
	log logger.Logger
}

func NewNotifier(rdb *redis.Client, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.Nop()
	}
	return &Notifier{
		subs: make(map[chan string]struct{}),
		rdb:  rdb,
		log:  log,
	}
}

// Notify wakes local watchers and publishes the stamp to Redis.
func (n *Notifier) Notify(ctx context.Context, stamp string) {
	n.broadcast(stamp)
	if n.rdb != nil {
		if err := n.rdb.Publish(ctx, redisChannel, stamp).Err(); err != nil {
			n.log.Warn("redis publish failed", logger.Error(err))
		}
	}
}

func (n *Notifier) broadcast(stamp string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- stamp:
		default:
		}
	}
}

// Subscribe registers a watcher channel; cancel must be called when the
// watcher is done.
func (n *Notifier) Subscribe() (ch chan string, cancel func()) {
	ch = make(chan string, 1)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()
	return ch, func() {
		n.mu.Lock()
		delete(n.subs, ch)
		n.mu.Unlock()
	}
}

// Run consumes the Redis channel and rebroadcasts stamps locally.
// Returns immediately when Redis is not configured.
func (n *Notifier) Run(ctx context.Context) {
	if n.rdb == nil {
		return
	}
	sub := n.rdb.Subscribe(ctx, redisChannel)
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				n.broadcast(msg.Payload)
			}
		}
	}()
}

// registerWatch is a raw chi route: long-poll does not fit the
// request/response schema model, and the handler needs to choose
// between 200-with-document and 204 at runtime.
func registerWatch(router chi.Router, basePath string, cfg Config) {
	router.Get(path.Join(basePath, "document/watch"), func(w http.ResponseWriter, r *http.Request) {
		since := r.URL.Query().Get("since")
		timeout := cfg.WatchTimeout
		if s := r.URL.Query().Get("timeout_s"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= maxWatchSeconds {
				timeout = time.Duration(n) * time.Second
			}
		}

		stamp, err := cfg.Repo.DocumentStamp(r.Context())
		if err != nil {
			respondStatusError(w, handleError(err))
			return
		}
		if stamp != "" && stamp != since {
			writeDocument(w, r.Context(), cfg)
			return
		}

		ch, cancel := cfg.Notifier.Subscribe()
		defer cancel()
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		for {
			select {
			case <-r.Context().Done():
				return
			case <-timer.C:
				w.WriteHeader(http.StatusNoContent)
				return
			case newStamp := <-ch:
				if newStamp != "" && newStamp != since {
					writeDocument(w, r.Context(), cfg)
					return
				}
			}
		}
	})
}

func writeDocument(w http.ResponseWriter, ctx context.Context, cfg Config) {
	doc, err := cfg.Repo.GetDocument(ctx)
	if err != nil {
		respondStatusError(w, handleError(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
