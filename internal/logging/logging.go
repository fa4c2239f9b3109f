// Package logging is a tiny levelled wrapper over the standard logger, colouring level
// tags when the output is a terminal.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
)

type Level uint8

const (
	Debug Level = iota
	Info
	Warn
	Error
	// Silent disables the logging at all.
	Silent
)

var tags = [...]*color.Color{
	Debug: color.New(color.FgHiBlack),
	Info:  color.New(color.FgGreen),
	Warn:  color.New(color.FgYellow),
	Error: color.New(color.FgRed, color.Bold),
}

var names = [...]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

func (l Level) String() string {
	if int(l) >= len(names) {
		return "SILENT"
	}

	return names[l]
}

// Logger is safe for concurrent use. The zero value isn't usable, use New.
type Logger struct {
	out   *log.Logger
	level Level
	// colored is fixed at construction, so loggers writing into buffers don't carry
	// escape sequences.
	colored bool
}

// New returns a logger writing messages of the level and above into the writer.
func New(w io.Writer, level Level) *Logger {
	colored := false
	if f, ok := w.(*os.File); ok && !color.NoColor {
		colored = f == os.Stdout || f == os.Stderr
	}

	return &Logger{
		out:     log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level:   level,
		colored: colored,
	}
}

// Default writes everything above debug into the stderr.
func Default() *Logger {
	return New(os.Stderr, Info)
}

// Nop discards every message.
func Nop() *Logger {
	return New(io.Discard, Silent)
}

func (l *Logger) Level() Level {
	return l.level
}

func (l *Logger) Enabled(level Level) bool {
	return level >= l.level && level < Silent
}

func (l *Logger) Debugf(format string, args ...any) {
	l.printf(Debug, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.printf(Info, format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.printf(Warn, format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.printf(Error, format, args...)
}

func (l *Logger) printf(level Level, format string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	tag := "[" + names[level] + "]"
	if l.colored {
		tag = tags[level].Sprint(tag)
	}

	_ = l.out.Output(3, tag+" "+fmt.Sprintf(format, args...))
}
