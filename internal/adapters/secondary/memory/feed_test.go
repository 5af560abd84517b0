package memory

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedromedina19/hermes-bridge/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeed(t *testing.T) {
	rec := domain.Record{Timestamp: time.Now(), Topic: "data/ESP32", Payload: "42"}

	t.Run("publish reaches every watcher", func(t *testing.T) {
		f := NewFeed(4, discardLogger())
		ch1, _ := f.Subscribe()
		ch2, _ := f.Subscribe()

		f.Publish(rec)

		assert.Equal(t, rec, <-ch1)
		assert.Equal(t, rec, <-ch2)
	})

	t.Run("unsubscribe closes the channel once", func(t *testing.T) {
		f := NewFeed(4, discardLogger())
		ch, id := f.Subscribe()
		require.Equal(t, 1, f.Len())

		f.Unsubscribe(id)
		f.Unsubscribe(id)

		_, open := <-ch
		assert.False(t, open)
		assert.Equal(t, 0, f.Len())
	})

	t.Run("slow watcher drops instead of blocking", func(t *testing.T) {
		f := NewFeed(1, discardLogger())
		ch, _ := f.Subscribe()

		done := make(chan struct{})
		go func() {
			f.Publish(rec)
			f.Publish(domain.Record{Topic: "data/ESP32", Payload: "43"})
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("publish blocked on a full watcher")
		}
		assert.Equal(t, "42", (<-ch).Payload)
		assert.Empty(t, ch)
	})

	t.Run("close shuts every watcher", func(t *testing.T) {
		f := NewFeed(1, discardLogger())
		ch, _ := f.Subscribe()
		f.Close()
		f.Close()

		_, open := <-ch
		assert.False(t, open)

		late, _ := f.Subscribe()
		_, open = <-late
		assert.False(t, open)
	})
}
