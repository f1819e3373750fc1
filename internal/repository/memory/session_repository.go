package memory

import (
	"sync"
	"time"

	"biblo-chat-be/pkg/store"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const maxIDAttempts = 3

// SessionRepositoryConfig controls expiry and the per-session options handed to new sessions.
// A zero TTL keeps sessions until they are ended explicitly.
type SessionRepositoryConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Session       store.Options
}

// SessionRepository is the process-wide owner of live sessions.
type SessionRepository struct {
	mu        sync.Mutex
	cache     *cache.Cache
	ttl       time.Duration
	opts      store.Options
	newID     func() string
	onExpired func(*store.Session)
}

func NewSessionRepository(cfg SessionRepositoryConfig) *SessionRepository {
	expiration := cache.NoExpiration
	sweep := time.Duration(0)
	if cfg.TTL > 0 {
		expiration = cfg.TTL
		sweep = cfg.SweepInterval
		if sweep <= 0 {
			sweep = time.Minute
		}
	}

	r := &SessionRepository{
		cache: cache.New(expiration, sweep),
		ttl:   cfg.TTL,
		opts:  cfg.Session,
		newID: uuid.NewString,
	}
	r.cache.OnEvicted(r.evicted)
	return r
}

// OnExpired registers the teardown hook for sessions evicted by the TTL janitor.
func (r *SessionRepository) OnExpired(fn func(*store.Session)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpired = fn
}

func (r *SessionRepository) Create(domain store.Domain, meta store.ClientMeta) *store.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		session := store.NewSession(r.newID(), domain, meta, r.opts)
		if err := r.cache.Add(session.ID(), session, cache.DefaultExpiration); err == nil {
			return session
		}
	}
	panic("session repository: could not allocate a unique session id")
}

// Get returns the live session. Access slides the expiry window when a TTL is configured.
func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(sessionID)
}

func (r *SessionRepository) getLocked(sessionID string) (*store.Session, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	session := x.(*store.Session)
	if r.ttl > 0 {
		r.cache.SetDefault(sessionID, session)
	}
	return session, true
}

// Touch records a liveness ping on the session.
func (r *SessionRepository) Touch(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, found := r.getLocked(sessionID)
	if !found {
		return false
	}
	session.Touch()
	return true
}

// Delete removes the session and marks it ended. The second call for the same id returns false.
func (r *SessionRepository) Delete(sessionID string) (*store.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	session := x.(*store.Session)
	session.End()
	r.cache.Delete(sessionID)
	return session, true
}

func (r *SessionRepository) ListIDs() []string {
	items := r.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}

func (r *SessionRepository) Count() int {
	return len(r.cache.Items())
}

// evicted runs for explicit deletes and janitor expiry alike. Explicit deletes have
// already ended the session, so only expiry reaches the hook.
func (r *SessionRepository) evicted(_ string, value interface{}) {
	session, ok := value.(*store.Session)
	if !ok || !session.End() {
		return
	}
	r.mu.Lock()
	hook := r.onExpired
	r.mu.Unlock()
	if hook != nil {
		hook(session)
	}
}
