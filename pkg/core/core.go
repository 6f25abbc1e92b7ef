package core

import (
	"context"
)

// Exchange is the engine's only dependency on the outside world: it
// composes the read path (Feeder) and, for live mode, the write path
// (Broker) behind a single interface so the position manager and
// scheduler never import an exchange package directly (spec §6).
type Exchange interface {
	Feeder
	Broker
}

// Feeder is the consumed candle-fetching surface. FetchClosedCandles
// must return at least limit candles ending at the latest fully closed
// candle and is idempotent: the core never assumes a websocket push
// feed, even when the adapter behind it happens to use one (spec §6).
type Feeder interface {
	AssetsInfo(symbol string) AssetInfo
	FetchClosedCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}

// Broker is the consumed order-execution surface, used only in live
// mode; paper mode never calls it. The core treats OrderResult as
// authoritative and reconciles quantity, average entry price, and
// commission from it rather than from its own intent (spec §6, §9
// Open Question #3).
type Broker interface {
	Account(ctx context.Context) (Account, error)
	ExecuteOrder(ctx context.Context, symbol string, side SideType, orderType OrderType, qty float64, limitPrice float64) (OrderResult, error)
}

// Notifier is the chat/mail fan-out surface for state-changing events
// (spec §7: every open, partial-close, averaging, full close, and
// trade-triggering regime switch produces one notification).
type Notifier interface {
	Notify(msg string)
	OnTrade(trade TradeRecord)
	OnError(symbol string, err error)
}

// NotifierWithStart is a Notifier that owns a long-running poll loop
// (e.g. the Telegram long poller) and must be started and stopped with
// the rest of the process.
type NotifierWithStart interface {
	Notifier
	Start(ctx context.Context) error
	Stop()
}

// Logger is the structured logging surface consumed throughout the
// engine; pkg/logger/zerolog is the concrete adapter (spec ambient
// stack).
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	WithFields(fields map[string]any) Logger
}
