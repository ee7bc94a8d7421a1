package engine

import "time"

// Config holds tunables for the scheduling engine, paralleling the
// functional-options worker configuration pattern used elsewhere in this
// module's lineage (WithScheduleInterval, WithProcessInterval, ...).
type Config struct {
	// BatchSize bounds how many due records the dispatcher pops per loop
	// iteration, to bound peak memory (§4.1 step 6, default 64).
	BatchSize int

	// SenderPoolSize bounds how many sender invocations may run
	// concurrently (§5, §9 "small bounded pool").
	SenderPoolSize int

	// GatewayBaseDelay, GatewayMaxDelay, GatewayMaxRetries parameterize the
	// bounded exponential back-off dispatcher-side gateway writes use when
	// the object store is failing (§7 GatewayError).
	GatewayBaseDelay  time.Duration
	GatewayMaxDelay   time.Duration
	GatewayMaxRetries int

	// WritingPollInterval is how long the dispatcher waits before
	// re-checking a due heap head whose active document is still being
	// written (§9 "Allowed tightening").
	WritingPollInterval time.Duration
}

// DefaultConfig returns the §4.1 / §7 default tunables.
func DefaultConfig() Config {
	return Config{
		BatchSize:           64,
		SenderPoolSize:      8,
		GatewayBaseDelay:    100 * time.Millisecond,
		GatewayMaxDelay:     5 * time.Second,
		GatewayMaxRetries:   5,
		WritingPollInterval: 5 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.SenderPoolSize <= 0 {
		c.SenderPoolSize = d.SenderPoolSize
	}
	if c.GatewayBaseDelay <= 0 {
		c.GatewayBaseDelay = d.GatewayBaseDelay
	}
	if c.GatewayMaxDelay <= 0 {
		c.GatewayMaxDelay = d.GatewayMaxDelay
	}
	if c.GatewayMaxRetries <= 0 {
		c.GatewayMaxRetries = d.GatewayMaxRetries
	}
	if c.WritingPollInterval <= 0 {
		c.WritingPollInterval = d.WritingPollInterval
	}
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithConfig overrides the engine's tunables wholesale.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithMetrics attaches a Metrics sink (default: no-op).
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithAuditSink attaches an AuditSink for terminal transitions (default: no-op).
func WithAuditSink(a AuditSink) Option {
	return func(e *Engine) {
		if a != nil {
			e.audit = a
		}
	}
}
