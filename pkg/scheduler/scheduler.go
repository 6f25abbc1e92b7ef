package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"github.com/jpillora/backoff"

	"github.com/raykavin/backnrun/pkg/core"
)

const (
	defaultFetchLimit  = 2
	defaultMaxAttempts = 4
)

// CandleHandler receives every complete candle dispatched in open-time
// order; the consume loop drops incomplete candles before the handler.
type CandleHandler interface {
	OnCandle(ctx context.Context, candle core.Candle)
}

// Scheduler polls a bounded pool of tracked symbols on a fixed cadence,
// isolates a failing symbol's retries from every other symbol's, and
// drains the resulting candles to a CandleHandler in strict open-time
// order through core.PriorityQueue (spec §5).
type Scheduler struct {
	feeder   core.Feeder
	ledger   core.Ledger
	log      core.Logger
	handler  CandleHandler
	interval string
	warmup   int

	tracked *set.LinkedHashSetString
	trackedMu sync.RWMutex

	sem   chan struct{}
	queue *core.PriorityQueue

	lastSeen   map[string]time.Time
	lastSeenMu sync.Mutex
}

// New builds a Scheduler for the given candle interval. maxConcurrentFetches
// bounds how many symbols can be mid-fetch at once (MAX_CONCURRENT_FETCHES,
// spec §6); warmupPeriod is how many candles to preload per newly tracked
// symbol before the indicator pipeline can produce its first snapshot.
func New(feeder core.Feeder, ledger core.Ledger, log core.Logger, handler CandleHandler, interval string, warmupPeriod, maxConcurrentFetches int) *Scheduler {
	if maxConcurrentFetches < 1 {
		maxConcurrentFetches = 1
	}

	return &Scheduler{
		feeder:   feeder,
		ledger:   ledger,
		log:      log,
		handler:  handler,
		interval: interval,
		warmup:   warmupPeriod,
		tracked:  set.NewLinkedHashSetString(),
		sem:      make(chan struct{}, maxConcurrentFetches),
		queue:    core.NewPriorityQueue(nil),
		lastSeen: make(map[string]time.Time),
	}
}

// LoadTracked seeds the in-memory tracked set from the ledger's durable
// record, so a restart resumes exactly the symbols that were active before
// it (spec §3).
func (s *Scheduler) LoadTracked(ctx context.Context) error {
	symbols, err := s.ledger.TrackedSymbols(ctx)
	if err != nil {
		return err
	}

	s.trackedMu.Lock()
	defer s.trackedMu.Unlock()
	for _, sym := range symbols {
		if sym.Active {
			s.tracked.Add(sym.Symbol)
		}
	}
	return nil
}

// TrackSymbol adds symbol to durable tracking and preloads its warmup
// window before the scheduler starts polling it — the chat "add" command's
// entry point (spec §7).
func (s *Scheduler) TrackSymbol(ctx context.Context, symbol string) error {
	if err := s.ledger.TrackSymbol(ctx, symbol); err != nil {
		return err
	}

	candles, err := s.feeder.FetchClosedCandles(ctx, symbol, s.interval, s.warmup)
	if err != nil {
		return err
	}

	s.trackedMu.Lock()
	s.tracked.Add(symbol)
	s.trackedMu.Unlock()

	for _, candle := range candles {
		s.queue.Push(candle)
	}
	s.recordSeen(symbol, candles)

	return nil
}

// UntrackSymbol removes symbol from durable tracking and stops polling it —
// the chat "remove" command's entry point.
func (s *Scheduler) UntrackSymbol(ctx context.Context, symbol string) error {
	if err := s.ledger.UntrackSymbol(ctx, symbol); err != nil {
		return err
	}

	s.trackedMu.Lock()
	s.tracked.Remove(symbol)
	s.trackedMu.Unlock()
	return nil
}

// TrackedSymbols returns a snapshot of the symbols currently being polled.
func (s *Scheduler) TrackedSymbols() []string {
	s.trackedMu.RLock()
	defer s.trackedMu.RUnlock()

	out := make([]string, 0, s.tracked.Len())
	for sym := range s.tracked.Iter() {
		out = append(out, sym)
	}
	return out
}

// Run polls every tracked symbol every pollInterval and dispatches
// candles as they're drained from the priority queue, until ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context, pollInterval time.Duration) {
	go s.consume(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, symbol := range s.TrackedSymbols() {
		go s.fetchSymbol(ctx, symbol)
	}
}

func (s *Scheduler) fetchSymbol(ctx context.Context, symbol string) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	retry := &backoff.Backoff{Min: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: true}

	for attempt := 0; attempt < defaultMaxAttempts; attempt++ {
		candles, err := s.feeder.FetchClosedCandles(ctx, symbol, s.interval, defaultFetchLimit)
		if err == nil {
			s.dispatchNew(symbol, candles)
			return
		}

		if errors.Is(err, core.ErrSymbolUnknown) {
			s.log.Errorf("scheduler: %s reported unknown by exchange, deactivating: %v", symbol, err)
			if deactivateErr := s.ledger.DeactivateSymbol(ctx, symbol); deactivateErr != nil {
				s.log.Errorf("scheduler: deactivate %s: %v", symbol, deactivateErr)
			}
			s.trackedMu.Lock()
			s.tracked.Remove(symbol)
			s.trackedMu.Unlock()
			return
		}

		s.log.Warnf("scheduler: fetch %s attempt %d failed: %v", symbol, attempt+1, err)
		select {
		case <-time.After(retry.Duration()):
		case <-ctx.Done():
			return
		}
	}

	s.log.Errorf("scheduler: giving up on %s for this tick after %d attempts", symbol, defaultMaxAttempts)
}

// dispatchNew pushes only candles strictly newer than the last one seen for
// symbol, since FetchClosedCandles may legitimately overlap with the
// previous poll.
func (s *Scheduler) dispatchNew(symbol string, candles []core.Candle) {
	s.lastSeenMu.Lock()
	last, ok := s.lastSeen[symbol]
	s.lastSeenMu.Unlock()

	fresh := make([]core.Candle, 0, len(candles))
	for _, candle := range candles {
		if ok && !candle.OpenTime.After(last) {
			continue
		}
		fresh = append(fresh, candle)
	}

	if len(fresh) == 0 {
		return
	}

	s.recordSeen(symbol, fresh)
	for _, candle := range fresh {
		s.queue.Push(candle)
	}
}

func (s *Scheduler) recordSeen(symbol string, candles []core.Candle) {
	if len(candles) == 0 {
		return
	}

	newest := candles[0].OpenTime
	for _, candle := range candles[1:] {
		if candle.OpenTime.After(newest) {
			newest = candle.OpenTime
		}
	}

	s.lastSeenMu.Lock()
	if prev, ok := s.lastSeen[symbol]; !ok || newest.After(prev) {
		s.lastSeen[symbol] = newest
	}
	s.lastSeenMu.Unlock()
}

func (s *Scheduler) consume(ctx context.Context) {
	ready := s.queue.PopLock()

	for {
		select {
		case <-ctx.Done():
			return
		case item := <-ready:
			candle := item.(core.Candle)
			if candle.Complete {
				s.handler.OnCandle(ctx, candle)
			}
		}
	}
}
