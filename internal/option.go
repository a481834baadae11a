package internal

import "log/slog"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logger    *slog.Logger
	noWatcher bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the default JSON logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) {
		a.logger = logger
	}
}

// WithoutWatcher disables the filesystem watcher. Tests that rebuild
// explicitly use this to avoid debounce timing.
func WithoutWatcher() Option {
	return func(a *application) {
		a.noWatcher = true
	}
}
