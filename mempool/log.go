// Copyright (c) 2013-2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mempool

import (
	"context"
	"fmt"
	"strings"

	"github.com/btcsuite/btclog"
)

// structuredLogger adds key/value structured logging on top of a plain
// btclog.Logger. Call sites look like log.DebugS(ctx, "message", "key",
// value, ...); the ctx parameter carries no cancellation semantics here
// (logging never blocks) but keeps call sites uniform with the rest of the
// node, where most calls that take a context do block.
type structuredLogger struct {
	btclog.Logger
}

// TraceS logs a structured message at the trace level.
func (l structuredLogger) TraceS(_ context.Context, msg string, kv ...interface{}) {
	if l.Level() > btclog.LevelTrace {
		return
	}
	l.Trace(render(msg, kv))
}

// DebugS logs a structured message at the debug level.
func (l structuredLogger) DebugS(_ context.Context, msg string, kv ...interface{}) {
	if l.Level() > btclog.LevelDebug {
		return
	}
	l.Debug(render(msg, kv))
}

// InfoS logs a structured message at the info level.
func (l structuredLogger) InfoS(_ context.Context, msg string, kv ...interface{}) {
	if l.Level() > btclog.LevelInfo {
		return
	}
	l.Info(render(msg, kv))
}

// WarnS logs a structured message at the warn level.
func (l structuredLogger) WarnS(_ context.Context, msg string, kv ...interface{}) {
	if l.Level() > btclog.LevelWarn {
		return
	}
	l.Warn(render(msg, kv))
}

// render appends kv as alternating "key=value" tokens to msg.
func render(msg string, kv []interface{}) string {
	if len(kv) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteString(" ")
		b.WriteString(toStr(kv[i]))
		b.WriteString("=")
		b.WriteString(toStr(kv[i+1]))
	}
	return b.String()
}

func toStr(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

// log is the package-level logger used throughout the mempool. It is
// disabled by default and must be set by the caller via UseLogger, following
// the same convention the rest of the btcsuite ecosystem uses for its
// subsystem loggers.
var log = structuredLogger{btclog.Disabled}

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = structuredLogger{logger}
}
