package logger

import "context"

// nullLogger discards all output. Used in tests and as a safe default.
type nullLogger struct{}

// NewNullLogger returns a Logger that discards everything.
func NewNullLogger() Logger {
	return nullLogger{}
}

func (nullLogger) Debug(context.Context, string, ...Field)        {}
func (nullLogger) Info(context.Context, string, ...Field)         {}
func (nullLogger) Warn(context.Context, string, ...Field)         {}
func (nullLogger) Error(context.Context, string, error, ...Field) {}
func (nullLogger) Fatal(context.Context, string, error, ...Field) {}
func (n nullLogger) WithFields(...Field) Logger                   { return n }
func (n nullLogger) WithComponent(string) Logger                  { return n }
