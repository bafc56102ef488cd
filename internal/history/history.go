// Package history keeps every tab's URL log in one JSON document under the
// "tabHistory" key of the shared key/value store.
//
// Each mutation is a read-modify-write of the whole document. Writers that raced
// are detected through the document version and retried, so a relay append and a
// panel delete issued at the same time both land.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/vincentbai/urltrail/internal/models"
)

// Key is the store key holding the TabHistory document.
const Key = "tabHistory"

const defaultMaxAttempts = 8

var (
	ErrIndexOutOfRange = errors.New("history: index out of range")
	ErrConflict        = errors.New("history: too many concurrent writers")
)

// KV is the slice of the key/value store the history document needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, int64, error)
	CompareAndSwap(ctx context.Context, key string, version int64, value []byte) (bool, error)
}

type Store struct {
	kv          KV
	maxAttempts int
}

func NewStore(kv KV) *Store {
	return &Store{kv: kv, maxAttempts: defaultMaxAttempts}
}

// Load returns the whole document. Read or decode failures degrade to an empty mapping.
func (s *Store) Load(ctx context.Context) models.TabHistory {
	raw, _, err := s.kv.Get(ctx, Key)
	if err != nil {
		log.WithError(err).Warn("history: read failed, showing empty history")
		return models.TabHistory{}
	}
	return decode(raw)
}

// Log returns one tab's chronological log, empty when the tab is unknown.
func (s *Store) Log(ctx context.Context, tabID int) models.TabLog {
	tabLog := s.Load(ctx)[models.TabKey(tabID)]
	if tabLog == nil {
		return models.TabLog{}
	}
	return tabLog
}

// Append adds event to the end of the tab's log, creating the log on first use.
func (s *Store) Append(ctx context.Context, tabID int, event models.URLEvent) error {
	return s.update(ctx, func(doc models.TabHistory) (bool, error) {
		key := models.TabKey(tabID)
		doc[key] = append(doc[key], event)
		return true, nil
	})
}

// Evict drops the tab's log entirely.
func (s *Store) Evict(ctx context.Context, tabID int) error {
	return s.update(ctx, func(doc models.TabHistory) (bool, error) {
		key := models.TabKey(tabID)
		if _, ok := doc[key]; !ok {
			return false, nil
		}
		delete(doc, key)
		return true, nil
	})
}

// Delete removes exactly the entry at the chronological index.
func (s *Store) Delete(ctx context.Context, tabID, index int) error {
	return s.update(ctx, func(doc models.TabHistory) (bool, error) {
		key := models.TabKey(tabID)
		tabLog := doc[key]
		if index < 0 || index >= len(tabLog) {
			return false, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(tabLog))
		}
		remaining := make(models.TabLog, 0, len(tabLog)-1)
		remaining = append(remaining, tabLog[:index]...)
		doc[key] = append(remaining, tabLog[index+1:]...)
		return true, nil
	})
}

// Clear replaces the tab's log with an empty one. The tab key stays.
func (s *Store) Clear(ctx context.Context, tabID int) error {
	return s.update(ctx, func(doc models.TabHistory) (bool, error) {
		doc[models.TabKey(tabID)] = models.TabLog{}
		return true, nil
	})
}

// update runs mutate against a fresh copy of the document until the write
// lands on the version it was read from. mutate reports whether it changed anything.
func (s *Store) update(ctx context.Context, mutate func(models.TabHistory) (bool, error)) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		raw, version, err := s.kv.Get(ctx, Key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", Key, err)
		}
		doc := decode(raw)

		changed, err := mutate(doc)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}

		encoded, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", Key, err)
		}
		ok, err := s.kv.CompareAndSwap(ctx, Key, version, encoded)
		if err != nil {
			return fmt.Errorf("failed to write %s: %w", Key, err)
		}
		if ok {
			return nil
		}
		log.WithFields(log.Fields{"attempt": attempt, "version": version}).Debug("history: concurrent write detected, retrying")
	}
	return ErrConflict
}

func decode(raw []byte) models.TabHistory {
	doc := models.TabHistory{}
	if len(raw) == 0 {
		return doc
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.WithError(err).Warn("history: stored document is unreadable, starting from empty")
		return models.TabHistory{}
	}
	if doc == nil {
		return models.TabHistory{}
	}
	return doc
}
