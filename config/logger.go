package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel parses a log level name. The empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", name)
	}
	return l, nil
}

// NewLogger returns a logger writing to w in the configured format. The
// returned level var controls the minimum level and can be changed while
// the logger is in use, e.g. by Watch.
func NewLogger(w io.Writer, c Log) (*slog.Logger, *slog.LevelVar, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, nil, err
	}
	lv := new(slog.LevelVar)
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	switch c.Format {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, nil, fmt.Errorf("config: unknown log format %q", c.Format)
	}
	return slog.New(h), lv, nil
}
