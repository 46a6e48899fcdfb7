// Package obslog is the structured-logging seam shared by every SPM
// package. A nil *Log is always valid and every method is a no-op on
// it, mirroring the teacher's statsHandlerHelper pattern so wiring a
// logger is opt-in: packages take a *Log field and call it unconditionally,
// whether or not the caller configured one.
package obslog

import (
	"io"
	"os"

	"github.com/joeycumines/izerolog"
	"github.com/joeycumines/logiface"
	"github.com/rs/zerolog"
)

// Event is the concrete logiface event type used throughout the SPM,
// backed by zerolog.
type Event = izerolog.Event

// Log wraps a logiface.Logger[*Event]. The zero value and a nil *Log
// are both valid and silently drop every call.
type Log struct {
	logger *logiface.Logger[*Event]
}

// New builds a Log writing JSON lines to w at the given minimum level.
// Passing a nil w is equivalent to io.Discard (logging compiled in but
// silenced), matching how a production image would wire this out
// entirely rather than pay for a writer nobody reads.
func New(w io.Writer, level logiface.Level) *Log {
	if w == nil {
		w = io.Discard
	}
	return &Log{
		logger: izerolog.L.New(
			izerolog.L.WithZerolog(zerolog.New(w).With().Timestamp().Logger()),
			izerolog.L.WithLevel(level),
		),
	}
}

// Default returns a Log writing to os.Stderr at informational level,
// the SPM's out-of-the-box logging configuration.
func Default() *Log {
	return New(os.Stderr, logiface.LevelInformational)
}

func (l *Log) Info() *logiface.Builder[*Event] {
	if l == nil || l.logger == nil {
		return nil
	}
	return l.logger.Info()
}

func (l *Log) Debug() *logiface.Builder[*Event] {
	if l == nil || l.logger == nil {
		return nil
	}
	return l.logger.Debug()
}

func (l *Log) Warning() *logiface.Builder[*Event] {
	if l == nil || l.logger == nil {
		return nil
	}
	return l.logger.Warning()
}

func (l *Log) Err() *logiface.Builder[*Event] {
	if l == nil || l.logger == nil {
		return nil
	}
	return l.logger.Err()
}

// Emit logs msg on b with no further fields, for callers that don't
// need the full Builder chain. A nil b is a no-op.
func Emit(b *logiface.Builder[*Event], msg string) {
	if b == nil {
		return
	}
	b.Log(msg)
}
