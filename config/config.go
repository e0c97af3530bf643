// Package config holds runtime configuration and locates the cache
// directory the debug console's history file lives in, in the style of
// usercorn's go/models.Config and go/ui.Repl history setup.
package config

import (
	"path/filepath"

	"github.com/shibukawa/configdir"
)

// Config controls the runtime's optional, non-guest-visible behavior:
// tracing verbosity, window title and frame rate, RAM size, and whether the
// debug console starts. None of it affects guest-observable semantics
// (spec.md 7).
type Config struct {
	Title string

	Color      bool
	TraceLimit int
	TraceFile  string

	RAMSize int

	DebugConsole bool

	TargetFPS int
}

// Default returns a Config with the runtime's baseline settings.
func Default() Config {
	return Config{
		Title:      "ps2xrun",
		Color:      true,
		TraceLimit: 10,
		TargetFPS:  60,
	}
}

// HistoryPath returns the path the debug console's readline history should
// be persisted to, creating the cache directory if needed. It returns ""
// if the cache directory can't be created (the console then runs without
// persistent history, same as usercorn's repl does on failure).
func HistoryPath() string {
	dirs := configdir.New("ps2x", "ps2xrun")
	cache := dirs.QueryCacheFolder()
	if err := cache.MkdirAll(); err != nil {
		return ""
	}
	return filepath.Join(cache.Path, "history")
}
