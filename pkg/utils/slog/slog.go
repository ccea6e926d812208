// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

package slog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/gardener/runsweeper/pkg/core/config"
)

// ErrInvalidLogLevel is an error, which is returned when an invalid log level
// has been configured.
var ErrInvalidLogLevel = errors.New("invalid log level")

// ErrInvalidLogFormat is an error, which is returned when an invalid log format
// has been configured.
var ErrInvalidLogFormat = errors.New("invalid log format")

// LogFormat represents the format of log events.
type LogFormat string

var (
	// FormatText specifies text log format.
	FormatText LogFormat = "text"
	// FormatJSON specifies JSON log format.
	FormatJSON LogFormat = "json"
)

// levels maps the supported level names to [slog.Level].
var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel parses the given log level name. An empty name yields
// [slog.LevelInfo].
func ParseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}

	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidLogLevel, name)
	}

	return level, nil
}

// NewFromConfig creates a new [slog.Logger] based on the provided
// [config.LoggingConfig] spec. The returned logger outputs to the given
// [io.Writer].
func NewFromConfig(w io.Writer, conf config.LoggingConfig) (*slog.Logger, error) {
	level, err := ParseLevel(conf.Level)
	if err != nil {
		return nil, err
	}

	logFormat := FormatText
	if conf.Format != "" {
		logFormat = LogFormat(conf.Format)
	}

	handlerOpts := &slog.HandlerOptions{
		AddSource: conf.AddSource,
		Level:     level,
	}

	var handler slog.Handler
	switch logFormat {
	case FormatText:
		handler = slog.NewTextHandler(w, handlerOpts)
	case FormatJSON:
		handler = slog.NewJSONHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidLogFormat, logFormat)
	}

	// Default attributes go in key order, so that log lines are stable
	attrs := make([]slog.Attr, 0, len(conf.Attributes))
	for _, k := range slices.Sorted(maps.Keys(conf.Attributes)) {
		attrs = append(attrs, slog.String(k, conf.Attributes[k]))
	}

	return slog.New(handler.WithAttrs(attrs)), nil
}
