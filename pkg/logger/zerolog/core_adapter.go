package zerolog

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/raykavin/backnrun/pkg/core"
)

// CoreAdapter wraps a *zerolog.Logger to satisfy core.Logger, the
// structured logging surface the engine, scheduler, and storage packages
// are built against; its WithFields returns a core.Logger so derived
// loggers keep the same surface.
type CoreAdapter struct {
	*zerolog.Logger
}

// NewCoreAdapter builds a CoreAdapter from an already-configured
// zerolog.Logger, typically the one returned by NewZerolog.
func NewCoreAdapter(logger *zerolog.Logger) *CoreAdapter {
	return &CoreAdapter{logger}
}

func (z *CoreAdapter) Debug(args ...any) { z.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (z *CoreAdapter) Debugf(format string, args ...any) { z.Logger.Debug().Msgf(format, args...) }
func (z *CoreAdapter) Info(args ...any)  { z.Logger.Info().Msg(fmt.Sprint(args...)) }
func (z *CoreAdapter) Infof(format string, args ...any) { z.Logger.Info().Msgf(format, args...) }
func (z *CoreAdapter) Warn(args ...any)  { z.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (z *CoreAdapter) Warnf(format string, args ...any) { z.Logger.Warn().Msgf(format, args...) }
func (z *CoreAdapter) Error(args ...any) { z.Logger.Error().Msg(fmt.Sprint(args...)) }
func (z *CoreAdapter) Errorf(format string, args ...any) { z.Logger.Error().Msgf(format, args...) }
func (z *CoreAdapter) Fatal(args ...any) { z.Logger.Fatal().Msg(fmt.Sprint(args...)) }
func (z *CoreAdapter) Fatalf(format string, args ...any) { z.Logger.Fatal().Msgf(format, args...) }

// WithFields implements core.Logger.
func (z *CoreAdapter) WithFields(fields map[string]any) core.Logger {
	newLogger := z.With().Fields(fields).Logger()
	return &CoreAdapter{&newLogger}
}
