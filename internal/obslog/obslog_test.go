package obslog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLogIsNoop(t *testing.T) {
	var l *Log
	assert.NotPanics(t, func() {
		l.Info().Str("k", "v").Log("hello")
		l.Debug().Err(errors.New("boom")).Log("debug")
		l.Warning().Log("warn")
		l.Err().Log("err")
	})
}

func TestNewWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelInformational)
	l.Info().Str("uid", "5").Log("record written")
	require.Contains(t, buf.String(), "record written")
	require.Contains(t, buf.String(), "\"uid\":\"5\"")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, logiface.LevelWarning)
	l.Debug().Log("should not appear")
	assert.Empty(t, buf.String())
	l.Warning().Log("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogHelperNilBuilder(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, "noop")
	})
}
