package core

import "time"

// PortfolioState is the single-row ledger summary of cash and realized
// performance (spec §4.7). Row ID is always 1; the ledger upserts it
// after every state-changing commit.
type PortfolioState struct {
	ID uint `gorm:"primaryKey"`

	CashBalance           float64
	Equity                float64
	RealizedPnLCumulative float64
	PeakEquity            float64

	WinCount  int
	LossCount int

	UpdatedAt time.Time
}

// DrawdownPct returns the current drawdown from the peak-equity
// high-water mark, 0 if equity is at or above the peak.
func (p *PortfolioState) DrawdownPct() float64 {
	if p.PeakEquity <= 0 || p.Equity >= p.PeakEquity {
		return 0
	}
	return (p.PeakEquity - p.Equity) / p.PeakEquity
}

// RecordEquity updates Equity and advances PeakEquity if a new high was
// reached.
func (p *PortfolioState) RecordEquity(equity float64) {
	p.Equity = equity
	if equity > p.PeakEquity {
		p.PeakEquity = equity
	}
}

// WinRate returns the fraction of closed trades that were winners, 0 if
// none have closed yet.
func (p *PortfolioState) WinRate() float64 {
	total := p.WinCount + p.LossCount
	if total == 0 {
		return 0
	}
	return float64(p.WinCount) / float64(total)
}

// MarkToMarketEquity computes equity as cash plus the mark-to-market
// value of every open position at its last observed price (spec §3:
// equity = balance_cash + Σ quantity × last_price).
func MarkToMarketEquity(cash float64, open []Position) float64 {
	equity := cash
	for _, pos := range open {
		equity += pos.Quantity * pos.LastPrice
	}
	return equity
}
