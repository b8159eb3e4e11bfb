//
// Copyright (c) 2020-2026 Markku Rossi
//
// All rights reserved.
//

package utils

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Logger implements the diagnostic output of the mapping and fanout
// optimization passes. Debug messages are gated by the verbosity
// level.
type Logger struct {
	out     io.Writer
	verbose int
}

// NewLogger creates a new logger outputting to the argument io.Writer
// with the verbosity level verbose.
func NewLogger(out io.Writer, verbose int) *Logger {
	return &Logger{
		out:     out,
		verbose: verbose,
	}
}

// Verbose returns the logger verbosity level.
func (l *Logger) Verbose() int {
	if l == nil {
		return 0
	}
	return l.verbose
}

// Errorf logs an error message and returns it as an error.
func (l *Logger) Errorf(loc Point, format string, a ...interface{}) error {
	msg := fmt.Sprintf(format, a...)
	if len(msg) > 0 && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	if l != nil {
		fmt.Fprintf(l.out, "%s: %s", loc, msg)
	}

	idx := strings.IndexRune(msg, '\n')
	if idx > 0 {
		msg = msg[:idx]
	}
	return errors.New(msg)
}

// Warningf logs a warning message.
func (l *Logger) Warningf(loc Point, format string, a ...interface{}) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if len(msg) > 0 && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprintf(l.out, "%s: warning: %s", loc, msg)
}

// Debugf logs a debug message if the logger verbosity is at least
// level.
func (l *Logger) Debugf(level int, format string, a ...interface{}) {
	if l == nil || l.verbose < level {
		return
	}
	msg := fmt.Sprintf(format, a...)
	if len(msg) > 0 && msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprint(l.out, msg)
}
