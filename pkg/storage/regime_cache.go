package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/raykavin/backnrun/pkg/core"
)

// RegimeCache is a buntdb-backed read-through cache in front of the
// durable RegimeState table. The dwell-time guard (spec §4.3) is
// checked on every tick of every tracked symbol, so keeping the hot
// path off SQLite meaningfully cuts per-tick latency; the sqlite row
// stays authoritative across restarts.
type RegimeCache struct {
	db     *buntdb.DB
	ledger *Ledger
}

// NewRegimeCache opens a buntdb instance at sourceFile backing the cache.
// Use ":memory:" for sourceFile to avoid a second file on disk.
func NewRegimeCache(sourceFile string, ledger *Ledger) (*RegimeCache, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("storage: open regime cache: %w", err)
	}
	if err := db.SetConfig(buntdb.Config{SyncPolicy: buntdb.Never}); err != nil {
		return nil, fmt.Errorf("storage: configure regime cache: %w", err)
	}
	return &RegimeCache{db: db, ledger: ledger}, nil
}

// Get returns the cached RegimeState, falling through to the ledger
// (and populating the cache) on a miss.
func (c *RegimeCache) Get(ctx context.Context, symbol string) (core.RegimeState, error) {
	if state, ok := c.readCache(symbol); ok {
		return state, nil
	}

	state, err := c.ledger.RegimeState(ctx, symbol)
	if err != nil {
		return core.RegimeState{}, err
	}
	c.writeCache(state)
	return state, nil
}

// Put writes through to the ledger first (durability) and only updates
// the cache once the durable write has succeeded.
func (c *RegimeCache) Put(ctx context.Context, state core.RegimeState) error {
	if err := c.ledger.UpdateRegimeState(ctx, state); err != nil {
		return err
	}
	c.writeCache(state)
	return nil
}

func (c *RegimeCache) readCache(symbol string) (core.RegimeState, bool) {
	var state core.RegimeState
	err := c.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(symbol)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &state)
	})
	return state, err == nil
}

func (c *RegimeCache) writeCache(state core.RegimeState) {
	_ = c.db.Update(func(tx *buntdb.Tx) error {
		content, err := json.Marshal(state)
		if err != nil {
			return err
		}
		_, _, err = tx.Set(state.Symbol, string(content), nil)
		return err
	})
}

// Close releases the underlying buntdb handle.
func (c *RegimeCache) Close() error { return c.db.Close() }
