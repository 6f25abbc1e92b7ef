// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/backnrun/internal/config"
	"github.com/raykavin/backnrun/pkg/chatbot"
	"github.com/raykavin/backnrun/pkg/core"
)

var (
	addRegexp       = regexp.MustCompile(`(?i)^/add\s+(\w+)`)
	removeRegexp    = regexp.MustCompile(`(?i)^/remove\s+(\w+)`)
	tradesRegexp    = regexp.MustCompile(`(?i)^/trades(?:\s+(\w+))?(?:\s+(\d+))?`)
	forceBuyRegexp  = regexp.MustCompile(`(?i)^/force_buy\s+(\w+)`)
)

// telegram implements core.NotifierWithStart. It owns the telebot.v2 long
// poller and reply keyboard; every command it receives is delegated to a
// chatbot.Commander, which owns the actual command logic.
type telegram struct {
	cfg       config.Telegram
	commander *chatbot.Commander
	log       core.Logger

	client      *tb.Bot
	defaultMenu *tb.ReplyMarkup
}

// NewTelegram creates and initializes a new Telegram service.
func NewTelegram(cfg config.Telegram, commander *chatbot.Commander, log core.Logger) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: 10 * time.Second}

	userMiddleware := createAuthMiddleware(poller, cfg, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     cfg.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &telegram{
		cfg:         cfg,
		commander:   commander,
		log:         log,
		client:      client,
		defaultMenu: menu,
	}

	registerHandlers(client, bot)

	return bot, nil
}

// createAuthMiddleware creates a middleware to validate authorized users.
func createAuthMiddleware(poller *tb.LongPoller, cfg config.Telegram, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("telegram: message or sender is nil")
			return false
		}

		if slices.Contains(cfg.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Errorf("telegram: unauthorized user %d", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout.
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		statusBtn = menu.Text("/status")
		balanceBtn = menu.Text("/balance")
		listBtn   = menu.Text("/list")
		startBtn  = menu.Text("/start")
		stopBtn   = menu.Text("/stop")
	)

	menu.Reply(
		menu.Row(statusBtn, balanceBtn, listBtn),
		menu.Row(startBtn, stopBtn),
	)
}

// setupCommands configures available bot commands.
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "help", Description: "Display help instructions"},
		{Text: "add", Description: "Track a symbol: /add BTCUSDT"},
		{Text: "remove", Description: "Stop tracking a symbol: /remove BTCUSDT"},
		{Text: "list", Description: "List tracked symbols"},
		{Text: "status", Description: "Open positions and bot state"},
		{Text: "balance", Description: "Portfolio cash/equity summary"},
		{Text: "trades", Description: "Recent trade history: /trades [SYMBOL] [N]"},
		{Text: "start", Description: "Resume opening new positions"},
		{Text: "stop", Description: "Pause opening new positions"},
		{Text: "reset", Description: "Acknowledge a settings reload"},
		{Text: "force_buy", Description: "Force an entry: /force_buy BTCUSDT"},
		{Text: "signal_stats", Description: "Vote delta histogram"},
		{Text: "signal_analysis", Description: "Bootstrap return confidence intervals"},
	})
}

// registerHandlers registers all command handlers.
func registerHandlers(client *tb.Bot, bot *telegram) {
	client.Handle("/help", bot.HelpHandle)
	client.Handle("/add", bot.AddHandle)
	client.Handle("/remove", bot.RemoveHandle)
	client.Handle("/list", bot.ListHandle)
	client.Handle("/status", bot.StatusHandle)
	client.Handle("/balance", bot.BalanceHandle)
	client.Handle("/trades", bot.TradesHandle)
	client.Handle("/start", bot.StartHandle)
	client.Handle("/stop", bot.StopHandle)
	client.Handle("/reset", bot.ResetHandle)
	client.Handle("/force_buy", bot.ForceBuyHandle)
	client.Handle("/signal_stats", bot.SignalStatsHandle)
	client.Handle("/signal_analysis", bot.SignalAnalysisHandle)
}

// Start begins the long poller and notifies authorized users. It blocks
// until ctx is canceled, matching core.NotifierWithStart's contract.
func (t *telegram) Start(ctx context.Context) error {
	go t.client.Start()
	t.sendMessageWithOptions("bot initialized", t.defaultMenu)
	<-ctx.Done()
	t.client.Stop()
	return nil
}

// Stop halts the long poller.
func (t *telegram) Stop() {
	t.client.Stop()
}

// Notify sends a message to all authorized users.
func (t *telegram) Notify(text string) {
	for _, user := range t.cfg.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text); err != nil {
			t.log.Errorf("telegram: send notification: %v", err)
		}
	}
}

func (t *telegram) sendMessageWithOptions(text string, options ...interface{}) {
	for _, user := range t.cfg.Users {
		if _, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...); err != nil {
			t.log.Errorf("telegram: send notification with options: %v", err)
		}
	}
}

func (t *telegram) sendMessage(to *tb.User, text string, options ...interface{}) {
	if _, err := t.client.Send(to, text, options...); err != nil {
		t.log.Errorf("telegram: send message: %v", err)
	}
}

// HelpHandle displays available commands.
func (t *telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.Errorf("telegram: get commands: %v", err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// AddHandle processes the "add <SYMBOL>" command.
func (t *telegram) AddHandle(m *tb.Message) {
	match := addRegexp.FindStringSubmatch(m.Text)
	if len(match) < 2 {
		t.sendMessage(m.Sender, "usage: /add BTCUSDT")
		return
	}
	t.sendMessage(m.Sender, t.commander.Add(context.Background(), match[1]))
}

// RemoveHandle processes the "remove <SYMBOL>" command.
func (t *telegram) RemoveHandle(m *tb.Message) {
	match := removeRegexp.FindStringSubmatch(m.Text)
	if len(match) < 2 {
		t.sendMessage(m.Sender, "usage: /remove BTCUSDT")
		return
	}
	t.sendMessage(m.Sender, t.commander.Remove(context.Background(), match[1]))
}

// ListHandle processes the "list" command.
func (t *telegram) ListHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.List())
}

// StatusHandle displays the current bot status.
func (t *telegram) StatusHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.Status(context.Background()))
}

// BalanceHandle shows the portfolio cash/equity summary.
func (t *telegram) BalanceHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.Balance(context.Background()))
}

// TradesHandle shows recent trade history, optionally filtered by symbol
// and limited to N rows: "/trades", "/trades BTCUSDT", "/trades BTCUSDT 20".
func (t *telegram) TradesHandle(m *tb.Message) {
	match := tradesRegexp.FindStringSubmatch(m.Text)
	symbol, limit := "", ""
	if len(match) == 3 {
		symbol, limit = match[1], match[2]
	}
	t.sendMessage(m.Sender, t.commander.Trades(context.Background(), symbol, limit))
}

// StartHandle resumes opening new positions.
func (t *telegram) StartHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.Start(), t.defaultMenu)
}

// StopHandle pauses opening new positions.
func (t *telegram) StopHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.Stop(), t.defaultMenu)
}

// ResetHandle acknowledges a settings reload.
func (t *telegram) ResetHandle(m *tb.Message) {
	t.sendMessage(m.Sender, t.commander.Reset())
}

// ForceBuyHandle processes the "force_buy <SYMBOL>" command.
func (t *telegram) ForceBuyHandle(m *tb.Message) {
	match := forceBuyRegexp.FindStringSubmatch(m.Text)
	if len(match) < 2 {
		t.sendMessage(m.Sender, "usage: /force_buy BTCUSDT")
		return
	}
	t.sendMessage(m.Sender, t.commander.ForceBuy(context.Background(), match[1]))
}

// SignalStatsHandle renders the vote-delta histogram.
func (t *telegram) SignalStatsHandle(m *tb.Message) {
	t.sendMessage(m.Sender, "```\n"+t.commander.SignalStats(context.Background())+"\n```")
}

// SignalAnalysisHandle renders the bootstrap confidence intervals.
func (t *telegram) SignalAnalysisHandle(m *tb.Message) {
	t.sendMessage(m.Sender, "```\n"+t.commander.SignalAnalysis(context.Background())+"\n```")
}

// OnTrade notifies users about every committed fill.
func (t *telegram) OnTrade(trade core.TradeRecord) {
	var title string
	switch trade.Side {
	case core.TradeSideBuy, core.TradeSideAverageDown, core.TradeSidePyramidUp:
		title = fmt.Sprintf("\U0001F195 %s %s", trade.Symbol, trade.Side)
	default:
		title = fmt.Sprintf("✅ %s %s", trade.Symbol, trade.Side)
	}

	message := fmt.Sprintf(
		"%s\n-----\nPrice: `%.4f`\nQty: `%.6f`\nRealized PnL: `%.4f`",
		title, trade.Price, trade.Quantity, trade.RealizedPnL,
	)
	t.Notify(message)
}

// OnError notifies users about errors tied to a symbol.
func (t *telegram) OnError(symbol string, err error) {
	t.Notify(fmt.Sprintf("\U0001F6D1 ERROR - %s\n-----\n%s", symbol, err))
}
