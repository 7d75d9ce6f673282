package zset

import "github.com/hashicorp/go-hclog"

// newLogger returns base named "zset.<name>" (or a discard logger if
// base is nil), matching the one-named-logger-per-component pattern
// used throughout the pack's hclog-backed components.
func newLogger(base hclog.Logger, name string) hclog.Logger {
	if base == nil {
		base = hclog.NewNullLogger()
	}
	if name == "" {
		name = "zset"
	} else {
		name = "zset." + name
	}
	return base.Named(name)
}
