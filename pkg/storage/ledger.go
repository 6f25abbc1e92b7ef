package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raykavin/backnrun/pkg/core"
)

// Config holds connection-pool tuning for the SQL-backed ledger,
// mirroring the teacher's storage.Config for SQLStorage.
type Config struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// Ledger is the gorm/sqlite-backed implementation of core.Ledger (spec
// §4.7). Per-symbol writes are serialized through symbolLocks so two
// tickers for different symbols never block each other, while cash
// reservation is guarded by a single global mutex, per spec §5's
// "reservation pattern" requirement.
type Ledger struct {
	db *gorm.DB

	symbolLocksMu sync.Mutex
	symbolLocks   map[string]*sync.Mutex

	cashMu sync.Mutex
}

// NewSQLiteLedger opens (and migrates) a sqlite-backed ledger at path.
func NewSQLiteLedger(path string, cfg Config) (*Ledger, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("storage: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.AutoMigrate(
		&core.TrackedSymbol{},
		&core.Position{},
		&core.AveragingEntry{},
		&core.TradeRecord{},
		&core.SignalRecord{},
		&core.PortfolioState{},
		&core.RegimeState{},
		&core.Settings{},
	); err != nil {
		return nil, fmt.Errorf("storage: automigrate: %w", err)
	}

	return &Ledger{db: db, symbolLocks: make(map[string]*sync.Mutex)}, nil
}

// Close releases the underlying sqlite connection pool.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (l *Ledger) lockFor(symbol string) *sync.Mutex {
	l.symbolLocksMu.Lock()
	defer l.symbolLocksMu.Unlock()
	m, ok := l.symbolLocks[symbol]
	if !ok {
		m = &sync.Mutex{}
		l.symbolLocks[symbol] = m
	}
	return m
}

// TrackSymbol implements core.Ledger.
func (l *Ledger) TrackSymbol(ctx context.Context, symbol string) error {
	mu := l.lockFor(symbol)
	mu.Lock()
	defer mu.Unlock()

	ts := core.TrackedSymbol{Symbol: symbol, AddedAt: time.Now(), Active: true}
	return l.db.WithContext(ctx).
		Where(core.TrackedSymbol{Symbol: symbol}).
		Assign(ts).
		FirstOrCreate(&ts).Error
}

// UntrackSymbol implements core.Ledger.
func (l *Ledger) UntrackSymbol(ctx context.Context, symbol string) error {
	mu := l.lockFor(symbol)
	mu.Lock()
	defer mu.Unlock()
	return l.db.WithContext(ctx).Where("symbol = ?", symbol).Delete(&core.TrackedSymbol{}).Error
}

// TrackedSymbols implements core.Ledger.
func (l *Ledger) TrackedSymbols(ctx context.Context) ([]core.TrackedSymbol, error) {
	var out []core.TrackedSymbol
	err := l.db.WithContext(ctx).Where("active = ?", true).Find(&out).Error
	return out, err
}

// DeactivateSymbol implements core.Ledger (spec §7 permanent-upstream error).
func (l *Ledger) DeactivateSymbol(ctx context.Context, symbol string) error {
	mu := l.lockFor(symbol)
	mu.Lock()
	defer mu.Unlock()
	return l.db.WithContext(ctx).Model(&core.TrackedSymbol{}).
		Where("symbol = ?", symbol).Update("active", false).Error
}

// OpenPosition implements core.Ledger.
func (l *Ledger) OpenPosition(ctx context.Context, pos *core.Position) error {
	mu := l.lockFor(pos.Symbol)
	mu.Lock()
	defer mu.Unlock()
	return l.db.WithContext(ctx).Create(pos).Error
}

// RecordEntry implements core.Ledger.
func (l *Ledger) RecordEntry(ctx context.Context, pos *core.Position) (core.TradeRecord, error) {
	rec := core.TradeRecord{
		Symbol:         pos.Symbol,
		CandleOpenTime: pos.OpenedAt,
		Reason:         string(core.TradeSideBuy),
		PositionID:     pos.ID,
		Side:           core.TradeSideBuy,
		Price:          pos.AverageEntryPrice,
		Quantity:       pos.Quantity,
		Commission:     pos.CommissionPaid,
		At:             time.Now(),
		EntryMode:      pos.EntryMode,
		VotesDelta:     pos.EntryVotes,
		Reasons:        pos.EntryReasons,
	}

	mu := l.lockFor(pos.Symbol)
	mu.Lock()
	defer mu.Unlock()

	err := l.db.WithContext(ctx).Create(&rec).Error
	if err != nil && isUniqueConstraintErr(err) {
		return rec, nil
	}
	return rec, err
}

// PositionFor implements core.Ledger. Returns nil, nil if no open
// position exists for the symbol.
func (l *Ledger) PositionFor(ctx context.Context, symbol string) (*core.Position, error) {
	var pos core.Position
	err := l.db.WithContext(ctx).Preload("AveragingEntries").
		Where("symbol = ? AND quantity > 0", symbol).
		First(&pos).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pos, nil
}

// OpenPositions implements core.Ledger.
func (l *Ledger) OpenPositions(ctx context.Context) ([]core.Position, error) {
	var out []core.Position
	err := l.db.WithContext(ctx).Preload("AveragingEntries").Where("quantity > 0").Find(&out).Error
	return out, err
}

// UpdatePosition implements core.Ledger.
func (l *Ledger) UpdatePosition(ctx context.Context, pos *core.Position) error {
	mu := l.lockFor(pos.Symbol)
	mu.Lock()
	defer mu.Unlock()
	return l.db.WithContext(ctx).Save(pos).Error
}

// ApplyExit implements core.Ledger: records the close/partial-close as
// a TradeRecord and persists the mutated position. The unique index on
// (symbol, candle_open_time, reason) makes a replayed commit a no-op
// (spec §7: ledger conflicts are idempotent successes).
func (l *Ledger) ApplyExit(ctx context.Context, positionID uint, candleOpenTime time.Time, updated core.Position, qtyClosed, price, commission float64, reason core.TradeSide) (core.TradeRecord, error) {
	realizedPnL := (price-updated.AverageEntryPrice)*qtyClosed - commission
	rec := core.TradeRecord{
		Symbol:         updated.Symbol,
		CandleOpenTime: candleOpenTime,
		Reason:         string(reason),
		PositionID:     positionID,
		Side:           reason,
		Price:          price,
		Quantity:       qtyClosed,
		Commission:     commission,
		RealizedPnL:    realizedPnL,
		At:             time.Now(),
		EntryMode:      updated.EntryMode,
		VotesDelta:     updated.EntryVotes,
		Reasons:        updated.EntryReasons,
	}

	mu := l.lockFor(updated.Symbol)
	mu.Lock()
	defer mu.Unlock()

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&rec); result.Error != nil {
			if isUniqueConstraintErr(result.Error) {
				return nil // idempotent replay
			}
			return result.Error
		}
		updated.ID = positionID
		return tx.Save(&updated).Error
	})
	return rec, err
}

// ApplyAveraging implements core.Ledger.
func (l *Ledger) ApplyAveraging(ctx context.Context, positionID uint, entry core.AveragingEntry, updated core.Position) (core.TradeRecord, error) {
	reason := core.TradeSideAverageDown
	if entry.Mode == core.AveragingModePyramid {
		reason = core.TradeSidePyramidUp
	}

	rec := core.TradeRecord{
		Symbol:         updated.Symbol,
		CandleOpenTime: entry.At,
		Reason:         string(reason),
		PositionID:     positionID,
		Side:           reason,
		Price:          entry.Price,
		Quantity:       entry.Quantity,
		Commission:     entry.Commission,
		At:             entry.At,
		EntryMode:      updated.EntryMode,
		VotesDelta:     updated.EntryVotes,
		Reasons:        updated.EntryReasons,
	}

	mu := l.lockFor(updated.Symbol)
	mu.Lock()
	defer mu.Unlock()

	err := l.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Create(&rec); result.Error != nil {
			if isUniqueConstraintErr(result.Error) {
				return nil
			}
			return result.Error
		}
		updated.ID = positionID
		return tx.Save(&updated).Error
	})
	return rec, err
}

// TradeHistory implements core.Ledger.
func (l *Ledger) TradeHistory(ctx context.Context, symbol string, limit int) ([]core.TradeRecord, error) {
	var out []core.TradeRecord
	q := l.db.WithContext(ctx).Where("symbol = ?", symbol).Order("at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// AppendSignal implements core.Ledger.
func (l *Ledger) AppendSignal(ctx context.Context, rec core.SignalRecord) error {
	return l.db.WithContext(ctx).Create(&rec).Error
}

// SignalHistory implements core.Ledger.
func (l *Ledger) SignalHistory(ctx context.Context, symbol string, limit int) ([]core.SignalRecord, error) {
	var out []core.SignalRecord
	q := l.db.WithContext(ctx).Where("symbol = ?", symbol).Order("at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Portfolio implements core.Ledger. Row ID is always 1; it's created on
// first use if missing.
func (l *Ledger) Portfolio(ctx context.Context) (core.PortfolioState, error) {
	var state core.PortfolioState
	err := l.db.WithContext(ctx).FirstOrCreate(&state, core.PortfolioState{ID: 1}).Error
	return state, err
}

// UpdatePortfolio implements core.Ledger.
func (l *Ledger) UpdatePortfolio(ctx context.Context, state core.PortfolioState) error {
	state.ID = 1
	state.UpdatedAt = time.Now()
	return l.db.WithContext(ctx).Save(&state).Error
}

// RegimeState implements core.Ledger.
func (l *Ledger) RegimeState(ctx context.Context, symbol string) (core.RegimeState, error) {
	var state core.RegimeState
	err := l.db.WithContext(ctx).
		Where(core.RegimeState{Symbol: symbol}).
		Attrs(core.RegimeState{LastMode: core.RegimeUnknown}).
		FirstOrCreate(&state).Error
	return state, err
}

// UpdateRegimeState implements core.Ledger.
func (l *Ledger) UpdateRegimeState(ctx context.Context, state core.RegimeState) error {
	return l.db.WithContext(ctx).Save(&state).Error
}

// LoadSettings implements core.Ledger, seeding spec §4 defaults on
// first run.
func (l *Ledger) LoadSettings(ctx context.Context) (core.Settings, error) {
	defaults := core.DefaultSettings()
	defaults.ID = 1
	var s core.Settings
	err := l.db.WithContext(ctx).Where(core.Settings{ID: 1}).Attrs(defaults).FirstOrCreate(&s).Error
	return s, err
}

// SaveSettings implements core.Ledger.
func (l *Ledger) SaveSettings(ctx context.Context, s core.Settings) error {
	s.ID = 1
	return l.db.WithContext(ctx).Save(&s).Error
}

// ReserveCash implements core.Ledger's reservation pattern (spec §5):
// a global critical section so two symbols can never both "see" the
// same free cash and double-spend it.
func (l *Ledger) ReserveCash(ctx context.Context, amount float64) (bool, error) {
	l.cashMu.Lock()
	defer l.cashMu.Unlock()

	var state core.PortfolioState
	if err := l.db.WithContext(ctx).FirstOrCreate(&state, core.PortfolioState{ID: 1}).Error; err != nil {
		return false, err
	}
	if state.CashBalance < amount {
		return false, nil
	}
	state.CashBalance -= amount
	state.UpdatedAt = time.Now()
	if err := l.db.WithContext(ctx).Save(&state).Error; err != nil {
		return false, err
	}
	return true, nil
}

// ReleaseCash implements core.Ledger.
func (l *Ledger) ReleaseCash(ctx context.Context, amount float64) error {
	l.cashMu.Lock()
	defer l.cashMu.Unlock()

	var state core.PortfolioState
	if err := l.db.WithContext(ctx).FirstOrCreate(&state, core.PortfolioState{ID: 1}).Error; err != nil {
		return err
	}
	state.CashBalance += amount
	state.UpdatedAt = time.Now()
	return l.db.WithContext(ctx).Save(&state).Error
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint")
}
