package gattc

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/user/gattc/cache"
	"github.com/user/gattc/security"
)

const (
	defaultTransactionTimeout = 30 * time.Second
	defaultResumeRate         = 100 * time.Millisecond
	defaultPoolCapacity       = 64
)

// Config holds the engine's tunables, assembled through functional options
// the way the rest of the pack wires up its device/client constructors.
type Config struct {
	transactionTimeout time.Duration
	resumeRate         time.Duration
	poolCapacity       int
	numEATT            int
	logger             *logrus.Entry
	cache              cache.GATTCache
	security           security.Manager
	autoPairReplay     bool
}

// Option configures an Engine at construction time.
type Option func(*Config)

func defaultConfig() *Config {
	return &Config{
		transactionTimeout: defaultTransactionTimeout,
		resumeRate:         defaultResumeRate,
		poolCapacity:       defaultPoolCapacity,
		logger:             defaultLogger(),
	}
}

// WithTransactionTimeout overrides the 30s default ATT transaction
// deadline.
func WithTransactionTimeout(d time.Duration) Option {
	return func(c *Config) { c.transactionTimeout = d }
}

// WithResumeRate overrides the stored resume interval. The engine keeps the
// value in its Config but does not read it: a STALLED procedure is retried
// on the first Tick after the stall, whatever interval the caller ticks at.
func WithResumeRate(d time.Duration) Option {
	return func(c *Config) { c.resumeRate = d }
}

// WithPoolCapacity overrides the default number of procedure records the
// engine can have in flight simultaneously.
func WithPoolCapacity(n int) Option {
	return func(c *Config) { c.poolCapacity = n }
}

// WithEATT enables n additional Enhanced ATT bearers per connection.
func WithEATT(n int) Option {
	return func(c *Config) { c.numEATT = n }
}

// WithLogger overrides the default structured logger.
func WithLogger(l *logrus.Logger) Option {
	return func(c *Config) { c.logger = l.WithField("component", "gattc") }
}

// WithCache wires a GATT cache collaborator so discovery initiators can
// shortcut the wire on a hit. ReadByUUID does not consult the cache.
func WithCache(gc cache.GATTCache) Option {
	return func(c *Config) { c.cache = gc }
}

// WithSecurity wires a security collaborator and enables auto-pair replay:
// a procedure whose first ATT error is an encryption/authentication
// deficiency is parked and replayed after elevation succeeds.
func WithSecurity(m security.Manager) Option {
	return func(c *Config) {
		c.security = m
		c.autoPairReplay = true
	}
}

func defaultLogger() *logrus.Entry {
	l := &logrus.Logger{
		Formatter: &logrus.TextFormatter{DisableTimestamp: true},
		Level:     logrus.InfoLevel,
		Out:       defaultLogOutput(),
		Hooks:     make(logrus.LevelHooks),
	}
	return l.WithField("component", "gattc")
}
