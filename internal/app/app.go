// Package app holds process-wide state for the service.
package app

import (
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/config"
	"interpreter-verify-service/internal/observability/logging"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
}

// New constructs an Application from the provided configuration and
// installs the global logger.
func New(cfg *config.Config) *Application {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Observability.LogLevel
	logCfg.Format = cfg.Observability.LogFormat
	logging.Init(logCfg)

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}
	a.Logger.Info().
		Str("principal", cfg.Service.Principal).
		Str("logLevel", cfg.Observability.LogLevel).
		Msg("Interpreter verify service application created")
	return a
}

// Start performs any startup work required before the session runs.
func (a *Application) Start() {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Interpreter verify service starting")
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Interpreter verify service shutting down")
}
