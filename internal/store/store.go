package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/nhle/climate-alerts/internal/model"
)

// ErrCorruptState marks persisted data that cannot be decoded into a
// recommendation list. Callers recover by starting from an empty list.
var ErrCorruptState = errors.New("corrupt persisted state")

// saveTimeout bounds a single background write.
const saveTimeout = 10 * time.Second

// Persister is the durable medium behind a Store.
type Persister interface {
	// Load returns the persisted list, or an empty list if nothing has been
	// saved yet. Malformed data is reported as ErrCorruptState.
	Load(ctx context.Context) ([]model.Recommendation, error)

	// Save replaces the persisted list.
	Save(ctx context.Context, recs []model.Recommendation) error

	// Close releases the underlying resources.
	Close() error
}

// Store owns the in-memory recommendation list. Every mutation is visible
// to readers as soon as the call returns; the full list is then written to
// the Persister by a background saver so callers never block on I/O.
type Store struct {
	mu     sync.RWMutex
	recs   []model.Recommendation
	closed bool
	// held is set while the persisted list could not be read; mutations
	// then stay in memory so they cannot overwrite it.
	held bool

	persister Persister
	logger    *slog.Logger

	saveCh  chan []model.Recommendation
	changes chan struct{}
	done    chan struct{}
}

// New creates a Store backed by p and starts its saver goroutine.
// Call Close to flush pending writes and stop it.
func New(p Persister, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		persister: p,
		logger:    logger,
		saveCh:    make(chan []model.Recommendation, 1),
		changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.saveLoop()
	return s
}

// Load replaces the in-memory list with the persisted one, dropping
// entries already expired at now. Corrupt state is discarded and the store
// starts empty. Any other persister error is returned and the store starts
// empty without persisting, so the unread list stays intact until a later
// Load succeeds.
func (s *Store) Load(ctx context.Context, now time.Time) error {
	recs, err := s.persister.Load(ctx)

	var loadErr error
	switch {
	case errors.Is(err, ErrCorruptState):
		s.logger.Warn("discarding corrupt recommendation state", "error", err)
		recs = nil
	case err != nil:
		recs = nil
		loadErr = fmt.Errorf("loading recommendations: %w", err)
		s.logger.Warn("persisted recommendations unreadable, changes kept in memory only", "error", err)
	}

	kept := make([]model.Recommendation, 0, len(recs))
	for _, r := range recs {
		if !r.Expired(now) {
			kept = append(kept, r)
		}
	}

	s.mu.Lock()
	s.recs = kept
	s.held = loadErr != nil
	s.mu.Unlock()
	s.notify()

	s.logger.Debug("recommendations loaded", "count", len(kept), "expired", len(recs)-len(kept))
	return loadErr
}

// Recommendations returns a copy of the current list, newest first.
func (s *Store) Recommendations() []model.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.recs)
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (model.Recommendation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recs {
		if r.ID == id {
			return r, true
		}
	}
	return model.Recommendation{}, false
}

// MarkRead flags the entry as read. It reports whether anything changed;
// an unknown id is a no-op.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 || s.recs[i].IsRead {
		return false
	}
	next := clone(s.recs)
	next[i].IsRead = true
	s.commit(next)
	return true
}

// Dismiss removes the entry. It reports whether anything changed; an
// unknown id is a no-op.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(id)
	if i < 0 {
		return false
	}
	next := make([]model.Recommendation, 0, len(s.recs)-1)
	next = append(next, s.recs[:i]...)
	next = append(next, s.recs[i+1:]...)
	s.commit(next)
	return true
}

// MarkAllRead flags every entry as read and returns how many changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.recs)
	n := 0
	for i := range next {
		if !next[i].IsRead {
			next[i].IsRead = true
			n++
		}
	}
	if n > 0 {
		s.commit(next)
	}
	return n
}

// UnreadCount returns the number of unread entries.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.recs {
		if !r.IsRead {
			n++
		}
	}
	return n
}

// PriorityUnread returns the unread high-priority entries in list order.
func (s *Store) PriorityUnread() []model.Recommendation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Recommendation
	for _, r := range s.recs {
		if r.Priority == model.PriorityHigh && !r.IsRead {
			out = append(out, r)
		}
	}
	return out
}

// Persisting reports whether mutations are being written to the
// persister. It is false after a Load that failed to read the list.
func (s *Store) Persisting() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.held && !s.closed
}

// Location returns where the persister keeps the list, if it says.
func (s *Store) Location() string {
	if l, ok := s.persister.(interface{ Path() string }); ok {
		return l.Path()
	}
	return ""
}

// LastSave reports when the persisted list was last written and how many
// entries it held, for persisters that record it.
func (s *Store) LastSave(ctx context.Context) (savedAt time.Time, count int, ok bool, err error) {
	r, recorded := s.persister.(interface {
		LastSave(ctx context.Context) (time.Time, int, bool, error)
	})
	if !recorded {
		return time.Time{}, 0, false, nil
	}
	return r.LastSave(ctx)
}

// Update replaces the list with fn(current) under the write lock, so a
// concurrent user mutation cannot be lost between read and write. fn
// receives a copy it may modify.
func (s *Store) Update(fn func(current []model.Recommendation) []model.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commit(fn(clone(s.recs)))
}

// Sweep drops entries expired at now and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]model.Recommendation, 0, len(s.recs))
	for _, r := range s.recs {
		if !r.Expired(now) {
			next = append(next, r)
		}
	}
	n := len(s.recs) - len(next)
	if n > 0 {
		s.commit(next)
	}
	return n
}

// Changes delivers a signal after each committed mutation. Signals
// coalesce: a slow reader sees one pending signal, not one per mutation.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// Close flushes the pending write, stops the saver and closes the
// persister. Mutations after Close update memory only.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.saveCh)
	s.mu.Unlock()

	<-s.done
	return s.persister.Close()
}

// commit installs next and schedules persistence. Callers hold mu.
func (s *Store) commit(next []model.Recommendation) {
	s.recs = next
	s.notify()

	if s.closed || s.held {
		return
	}
	// Keep only the newest pending list; the saver always writes full state.
	select {
	case <-s.saveCh:
	default:
	}
	s.saveCh <- clone(next)
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) saveLoop() {
	defer close(s.done)
	for recs := range s.saveCh {
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		if err := s.persister.Save(ctx, recs); err != nil {
			s.logger.Warn("persisting recommendations failed", "count", len(recs), "error", err)
		}
		cancel()
	}
}

func (s *Store) index(id string) int {
	for i, r := range s.recs {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func clone(recs []model.Recommendation) []model.Recommendation {
	if recs == nil {
		return []model.Recommendation{}
	}
	out := slices.Clone(recs)
	for i := range out {
		out[i].Actions = slices.Clone(out[i].Actions)
		if out[i].ValidUntil != nil {
			v := *out[i].ValidUntil
			out[i].ValidUntil = &v
		}
	}
	return out
}
