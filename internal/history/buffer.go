// Package history keeps the rolling window of recent chat messages.
package history

// bounded FIFO of chat events backed by a ring.
// not safe for concurrent use.
type Buffer struct {
	events []ChatEvent
	head   int // index of the oldest event
	size   int
}

// creates a buffer holding at most capacity events
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}

	return &Buffer{events: make([]ChatEvent, capacity)}
}

// adds event at the tail, evicting the oldest event when full
func (b *Buffer) Append(event ChatEvent) {
	capacity := len(b.events)

	if b.size < capacity {
		b.events[(b.head+b.size)%capacity] = event
		b.size++
		return
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % capacity
}

// returns up to limit of the newest events, oldest first
func (b *Buffer) Recent(limit int) []ChatEvent {
	n := min(max(limit, 0), b.size)
	out := make([]ChatEvent, n)

	start := b.head + b.size - n
	for i := range n {
		out[i] = b.events[(start+i)%len(b.events)]
	}

	return out
}

func (b *Buffer) Len() int {
	return b.size
}

func (b *Buffer) Cap() int {
	return len(b.events)
}
