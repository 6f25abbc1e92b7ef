package binance

import (
	"context"

	"github.com/raykavin/backnrun/pkg/core"
)

// Config is the construction-time configuration for the spot client.
type Config struct {
	APIKey     string
	APISecret  string
	UseTestnet bool

	CustomMainAPI    CustomEndpoint
	CustomTestnetAPI CustomEndpoint
}

// CustomEndpoint overrides the default Binance REST/WS hosts, used for
// regional mirrors or a self-hosted proxy in front of the public API.
type CustomEndpoint struct {
	API       string
	WebSocket string
	Combined  string
}

// NewExchange builds the spot client wired for both core.Feeder and
// core.Broker. Futures/margin markets are out of scope: this engine never
// holds leveraged positions (spec Non-goals).
func NewExchange(ctx context.Context, log core.Logger, config Config) (*Spot, error) {
	options := []SpotOption{}

	if config.APIKey != "" && config.APISecret != "" {
		options = append(options, WithSpotCredentials(config.APIKey, config.APISecret))
	}

	if config.UseTestnet {
		options = append(options, WithSpotTestNet())
	}

	if config.CustomMainAPI.API != "" {
		options = append(options, WithSpotCustomMainAPIEndpoint(
			config.CustomMainAPI.API,
			config.CustomMainAPI.WebSocket,
			config.CustomMainAPI.Combined,
		))
	}

	if config.CustomTestnetAPI.API != "" {
		options = append(options, WithSpotCustomTestnetAPIEndpoint(
			config.CustomTestnetAPI.API,
			config.CustomTestnetAPI.WebSocket,
			config.CustomTestnetAPI.Combined,
		))
	}

	return NewSpot(ctx, log, options...)
}
