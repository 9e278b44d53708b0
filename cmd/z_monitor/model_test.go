package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "hello", preview([]byte("hello")))
	assert.Equal(t, `a\x00b`, preview([]byte("a\x00b")))

	long := preview([]byte(strings.Repeat("x", 200)))
	assert.True(t, strings.HasSuffix(long, "(200 bytes)"), long)
}

func TestModelRecordsSamples(t *testing.T) {
	m := newModel(context.Background(), "demo/**", "zid", zenoh.NewRing(4), 2)
	_, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	require.True(t, m.ready)

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for _, key := range []string{"demo/a", "demo/b", "demo/a"} {
		_, cmd := m.Update(sampleMsg{KeyExpr: key, Payload: []byte("v"), Encoding: "text/plain", ReceivedAt: at})
		assert.NotNil(t, cmd)
	}

	assert.Equal(t, uint64(3), m.total)
	assert.Equal(t, uint64(2), m.counts["demo/a"])
	assert.Len(t, m.lines, 2)
	assert.Contains(t, m.View(), "3 samples")
}

func TestModelShowsClosedSubscriber(t *testing.T) {
	m := newModel(context.Background(), "demo/**", "zid", zenoh.NewRing(1), 8)
	_, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 20})
	_, _ = m.Update(closedMsg{err: zenoh.ErrHandlerClosed})
	assert.True(t, m.closed)
	assert.NoError(t, m.err)
	assert.Contains(t, m.View(), "subscriber closed")
}
