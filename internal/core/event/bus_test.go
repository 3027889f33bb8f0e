package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ping struct{ N int }
type pong struct{ N int }

func TestBusDeliversOnFlush(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(p ping) { got = append(got, "ping") })
	Subscribe(b, func(p pong) { got = append(got, "pong") })

	Emit(b, ping{1})
	Emit(b, pong{2})
	Emit(b, ping{3})
	assert.Empty(t, got, "nothing is delivered before Flush")
	assert.Equal(t, 3, b.Pending())

	b.Flush()
	assert.Equal(t, []string{"ping", "pong", "ping"}, got)
	assert.Zero(t, b.Pending())

	b.Flush()
	assert.Len(t, got, 3, "events are delivered once")
}

func TestBusHandlerEmitsForNextFlush(t *testing.T) {
	b := NewBus()
	var pongs []int
	Subscribe(b, func(p ping) { Emit(b, pong{p.N + 1}) })
	Subscribe(b, func(p pong) { pongs = append(pongs, p.N) })

	Emit(b, ping{1})
	b.Flush()
	assert.Empty(t, pongs)
	b.Flush()
	assert.Equal(t, []int{2}, pongs)
}

func TestBusWithoutHandlers(t *testing.T) {
	b := NewBus()
	Emit(b, ping{1})
	assert.NotPanics(t, b.Flush)
}
