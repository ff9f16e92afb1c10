package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/dubstream-gateway/internal/orchestrator"
)

func TestEventHub_PublishDeliversToSubscriber(t *testing.T) {
	h := newEventHub()
	ch := h.subscribe("task-1")
	defer h.unsubscribe("task-1", ch)

	h.Publish("task-1", orchestrator.TaskEvent{Sequence: 1, PlaylistURL: "hls/task-1/index.m3u8"})

	select {
	case ev := <-ch:
		assert.Equal(t, 1, ev.Sequence)
		assert.Equal(t, "hls/task-1/index.m3u8", ev.PlaylistURL)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestEventHub_PublishWithNoSubscribersNeverBlocks(t *testing.T) {
	h := newEventHub()
	done := make(chan struct{})
	go func() {
		h.Publish("no-such-task", orchestrator.TaskEvent{Sequence: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestEventHub_UnsubscribeClosesChannel(t *testing.T) {
	h := newEventHub()
	ch := h.subscribe("task-1")
	h.unsubscribe("task-1", ch)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestEventHub_FullSubscriberBufferDropsRatherThanBlocks(t *testing.T) {
	h := newEventHub()
	ch := h.subscribe("task-1")
	defer h.unsubscribe("task-1", ch)

	for i := 0; i < 100; i++ {
		h.Publish("task-1", orchestrator.TaskEvent{Sequence: i})
	}

	require.NotEmpty(t, ch)
}
