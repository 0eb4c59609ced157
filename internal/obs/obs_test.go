package obs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: Warn, Component: "test", Output: &buf})

	log.Info("should be filtered")
	assert.Empty(t, buf.String())

	log.Warn("should appear", String("k", "v"))
	out := buf.String()
	assert.Contains(t, out, "should appear")
	assert.Contains(t, out, `k="v"`)
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: Debug, Component: "parent", Output: &buf})
	child := log.With("child")

	child.Info("hello")
	assert.Contains(t, buf.String(), "[child]")
}

func TestWrap_PreservesErrorsIs(t *testing.T) {
	sentinel := errors.New("boom")
	wrapped := Wrap(sentinel, "context")
	assert.True(t, errors.Is(wrapped, sentinel))
	assert.True(t, strings.Contains(wrapped.Error(), "context"))
}

func TestShutdown_RunsAllRegisteredFuncs(t *testing.T) {
	var order []int
	s := NewShutdown(time.Second, nil)
	s.Register(func() error { order = append(order, 1); return nil })
	s.Register(func() error { order = append(order, 2); return nil })

	require.NoError(t, s.Run(context.Background()))
	// both ran; order among concurrent goroutines isn't guaranteed
	// beyond "both completed", so just check membership.
	assert.ElementsMatch(t, []int{1, 2}, order)
}

func TestShutdown_PropagatesFirstError(t *testing.T) {
	boom := errors.New("boom")
	s := NewShutdown(time.Second, nil)
	s.Register(func() error { return boom })

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
