package oracle

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/hindsight/internal/stats"
)

// Option configures a Pool.
type Option interface {
	apply(*options)
}

type options struct {
	size    int
	timeout time.Duration
	threads int
	hashMB  int
	stats   stats.Collector
	logger  *zap.Logger
}

func defaultOptions() options {
	return options{
		size:    2,
		timeout: 30 * time.Second,
		threads: 1,
		hashMB:  16,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
}

type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithSize sets the number of engine processes. Default is 2.
func WithSize(n int) Option {
	return optionFunc(func(o *options) {
		o.size = n
	})
}

// WithTimeout bounds each search attempt. Zero disables the bound.
// Default is 30s.
func WithTimeout(d time.Duration) Option {
	return optionFunc(func(o *options) {
		o.timeout = d
	})
}

// WithThreads sets the engine's Threads option.
func WithThreads(n int) Option {
	return optionFunc(func(o *options) {
		o.threads = n
	})
}

// WithHashMB sets the engine's Hash option in megabytes.
func WithHashMB(n int) Option {
	return optionFunc(func(o *options) {
		o.hashMB = n
	})
}

// WithStats sets the stats collector.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		if c != nil {
			o.stats = c
		}
	})
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		if l != nil {
			o.logger = l
		}
	})
}
