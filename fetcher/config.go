package fetcher

import "time"

// Config holds the engine-construction options from §6. Defaults match the
// table there exactly.
type Config struct {
	// Timeout is the per-request deadline before a job is marked expired.
	Timeout time.Duration
	// Interval is the idle-poll delay and the post-failure peer-release
	// delay.
	Interval time.Duration
	// BanTime is passed to PeerPool.Ban for irrecoverable failures and
	// expired requests.
	BanTime time.Duration
	// MaxQueue bounds both the in-flight dispatch window
	// (index <= processed+MaxQueue) and the emit-to-sink buffer.
	MaxQueue int
	// DestroyWhenDone tears the engine down once finished==total.
	DestroyWhenDone bool
}

// DefaultConfig returns the §6 defaults: 8s timeout, 1s interval, 60s ban,
// a window/buffer of 4, destroying the engine on completion.
func DefaultConfig() Config {
	return Config{
		Timeout:         8 * time.Second,
		Interval:        time.Second,
		BanTime:         60 * time.Second,
		MaxQueue:        4,
		DestroyWhenDone: true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.BanTime <= 0 {
		c.BanTime = d.BanTime
	}
	if c.MaxQueue <= 0 {
		c.MaxQueue = d.MaxQueue
	}
	return c
}
