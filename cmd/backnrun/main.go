// Command backnrun is the composition root: it wires configuration,
// storage, the exchange adapter, the engine, the scheduler, and the chat
// control surface together and runs them until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raykavin/backnrun/internal/config"
	"github.com/raykavin/backnrun/pkg/backtesting"
	"github.com/raykavin/backnrun/pkg/chatbot"
	"github.com/raykavin/backnrun/pkg/core"
	"github.com/raykavin/backnrun/pkg/engine"
	"github.com/raykavin/backnrun/pkg/exchange/binance"
	"github.com/raykavin/backnrun/pkg/logger/zerolog"
	"github.com/raykavin/backnrun/pkg/notification"
	"github.com/raykavin/backnrun/pkg/scheduler"
	"github.com/raykavin/backnrun/pkg/storage"
)

const dateLayout = "2006-01-02"

var configPath string

// download command flags
var (
	pair       string
	days       int
	startDate  string
	endDate    string
	timeframe  string
	outputFile string
	isFutures  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "backnrun",
		Short:   "Signal-and-portfolio trading engine",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildMigrateCmd())
	rootCmd.AddCommand(buildDownloadCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler, engine, and chat control surface",
		RunE:  runEngine,
	}
}

func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply ledger schema migrations and exit",
		RunE:  runMigrate,
	}
}

func buildDownloadCmd() *cobra.Command {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download historical OHLCV data to a CSV file",
		RunE:  runDownload,
	}

	downloadCmd.Flags().StringVarP(&pair, "pair", "p", "", "Trading pair (e.g. BTCUSDT)")
	downloadCmd.Flags().IntVarP(&days, "days", "d", 0, "Number of days to download (default 30 days)")
	downloadCmd.Flags().StringVarP(&startDate, "start", "s", "", "Start date (e.g. 2021-12-01)")
	downloadCmd.Flags().StringVarP(&endDate, "end", "e", "", "End date (e.g. 2020-12-31)")
	downloadCmd.Flags().StringVarP(&timeframe, "timeframe", "t", "", "Timeframe (e.g. 1h)")
	downloadCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (e.g. ./btc.csv)")
	downloadCmd.Flags().BoolVarP(&isFutures, "futures", "f", false, "Futures market (unsupported, spot-only)")

	downloadCmd.MarkFlagRequired("pair")
	downloadCmd.MarkFlagRequired("timeframe")
	downloadCmd.MarkFlagRequired("output")

	return downloadCmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func buildLogger(cfg config.Log) (core.Logger, error) {
	zl, err := zerolog.NewZerolog(cfg.Level, cfg.TimeLayout, cfg.Colored, cfg.JSONForm)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return zerolog.NewCoreAdapter(zl.Logger), nil
}

func openLedger(cfg config.Config) (*storage.Ledger, error) {
	return storage.NewSQLiteLedger(cfg.Database.LedgerPath, storage.DefaultConfig())
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer ledger.Close()

	fmt.Println("ledger schema is up to date:", cfg.Database.LedgerPath)
	return nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer ledger.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := seedPortfolio(ctx, ledger, cfg.InitialCash); err != nil {
		return fmt.Errorf("run: seed portfolio: %w", err)
	}

	regimeCache, err := storage.NewRegimeCache(cfg.Database.CachePath, ledger)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	defer regimeCache.Close()

	feeder, broker, err := buildExchange(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	notifiers, starters := buildNotifiers(cfg, log)

	eng := engine.New(ledger, regimeCache, broker, fanout(notifiers), log)
	sched := scheduler.New(feeder, ledger, log, eng, cfg.Interval, cfg.WarmupPeriod, cfg.MaxConcurrentFetches)

	if err := sched.LoadTracked(ctx); err != nil {
		return fmt.Errorf("run: load tracked symbols: %w", err)
	}
	for _, symbol := range cfg.Symbols {
		if err := sched.TrackSymbol(ctx, symbol); err != nil {
			log.Warnf("run: track %s: %v", symbol, err)
		}
	}

	commander := chatbot.New(sched, ledger, eng, log)
	if cfg.Telegram.Enabled {
		tg, err := notification.NewTelegram(cfg.Telegram, commander, log)
		if err != nil {
			return fmt.Errorf("run: telegram: %w", err)
		}
		starters = append(starters, tg)
	}

	for _, starter := range starters {
		go func(s core.NotifierWithStart) {
			if err := s.Start(ctx); err != nil {
				log.Errorf("run: notifier start: %v", err)
			}
		}(starter)
	}

	log.Infof("run: scheduler starting, interval=%s symbols=%v", cfg.Interval, sched.TrackedSymbols())
	sched.Run(ctx, cfg.PollInterval)

	for _, starter := range starters {
		starter.Stop()
	}
	return nil
}

// seedPortfolio funds a brand-new portfolio row with the configured
// starting cash. An already-funded portfolio is left untouched so a
// restart never re-funds the account.
func seedPortfolio(ctx context.Context, ledger core.Ledger, initialCash float64) error {
	state, err := ledger.Portfolio(ctx)
	if err != nil {
		return err
	}
	if state.CashBalance > 0 || state.Equity > 0 {
		return nil
	}

	state.CashBalance = initialCash
	state.Equity = initialCash
	state.PeakEquity = initialCash
	return ledger.UpdatePortfolio(ctx, state)
}

// buildExchange returns the live feeder plus, in live mode only, the
// order-execution broker. Paper mode still reads real market data but
// leaves broker nil, which the engine treats as "simulate the fill from
// the candle close instead of submitting it" (spec §9 Open Question #3).
func buildExchange(ctx context.Context, cfg config.Config, log core.Logger) (core.Feeder, core.Broker, error) {
	spot, err := binance.NewExchange(ctx, log, binance.Config{
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		UseTestnet: cfg.Exchange.UseTestnet,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build exchange: %w", err)
	}

	if cfg.Exchange.PaperMode {
		return spot, nil, nil
	}
	return spot, spot, nil
}

// fanout composes every enabled notifier behind a single core.Notifier,
// so the engine never needs to know how many channels it is broadcasting
// to.
type fanout []core.Notifier

func (f fanout) Notify(msg string) {
	for _, n := range f {
		n.Notify(msg)
	}
}

func (f fanout) OnTrade(trade core.TradeRecord) {
	for _, n := range f {
		n.OnTrade(trade)
	}
}

func (f fanout) OnError(symbol string, err error) {
	for _, n := range f {
		n.OnError(symbol, err)
	}
}

func buildNotifiers(cfg config.Config, log core.Logger) ([]core.Notifier, []core.NotifierWithStart) {
	var notifiers []core.Notifier
	var starters []core.NotifierWithStart

	if cfg.Mail.Enabled {
		notifiers = append(notifiers, notification.NewMail(notification.MailParams{
			SMTPServerPort:    cfg.Mail.SMTPServerPort,
			SMTPServerAddress: cfg.Mail.SMTPServerAddress,
			To:                cfg.Mail.To,
			From:              cfg.Mail.From,
			Password:          cfg.Mail.Password,
		}, log))
	}

	return notifiers, starters
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}

	if isFutures {
		return fmt.Errorf("futures markets are not supported: this engine is spot, long-only")
	}

	spot, err := binance.NewExchange(cmd.Context(), log, binance.Config{
		APIKey:     cfg.Exchange.APIKey,
		APISecret:  cfg.Exchange.APISecret,
		UseTestnet: cfg.Exchange.UseTestnet,
	})
	if err != nil {
		return err
	}

	options, err := buildDownloadOptions()
	if err != nil {
		return err
	}

	return backtesting.NewDownloader(spot, log).Download(
		cmd.Context(),
		pair,
		timeframe,
		outputFile,
		options...,
	)
}

func buildDownloadOptions() ([]backtesting.Option, error) {
	var options []backtesting.Option

	if days > 0 {
		options = append(options, backtesting.WithDays(days))
	}

	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return nil, fmt.Errorf("start and end dates must be provided together")
		}

		start, err := time.Parse(dateLayout, startDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date format: %w", err)
		}

		end, err := time.Parse(dateLayout, endDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date format: %w", err)
		}

		options = append(options, backtesting.WithInterval(start, end))
	}

	return options, nil
}
