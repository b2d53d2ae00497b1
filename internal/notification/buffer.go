package notification

import "sync"

// ringBuffer is a bounded FIFO. When full new messages are refused so that
// nothing already accepted is lost.
type ringBuffer struct {
	mu       sync.Mutex
	items    []Message
	head     int
	tail     int
	count    int
	capacity int
	rejected int64
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1024
	}
	return &ringBuffer{items: make([]Message, capacity), capacity: capacity}
}

// enqueue adds m and reports whether there was room for it.
func (b *ringBuffer) enqueue(m Message) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.rejected++
		return false
	}
	b.items[b.head] = m
	b.head = (b.head + 1) % b.capacity
	b.count++
	return true
}

func (b *ringBuffer) dequeueBatch(n int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}
	out := make([]Message, n)
	for i := range n {
		out[i] = b.items[b.tail]
		b.items[b.tail] = Message{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return out
}

func (b *ringBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *ringBuffer) rejectedTotal() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rejected
}
