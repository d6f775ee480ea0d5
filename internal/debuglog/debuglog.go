// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package debuglog provides the debug-gated logger for flowchat.
//
// Verbose logging has no behavioral effect: when debug is disabled a no-op
// logger is returned and every call site stays silent. When enabled, logs
// go to a file rather than the terminal so they never corrupt TUI output.
package debuglog

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// New returns a file-backed debug logger, or a no-op logger when disabled
// or when the log file cannot be opened (logging must never take the
// widget down).
func New(enabled bool, path string) *zap.SugaredLogger {
	if !enabled {
		return Nop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Nop()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Nop()
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.AddSync(f),
		zapcore.DebugLevel,
	)
	return zap.New(core).Sugar()
}
