package stream

import "errors"

// ErrEmpty is returned by Read when the stream holds no unread bytes.
var ErrEmpty = errors.New("stream empty")

type block struct {
	id   uint64
	data []byte // nil marks the sentinel
	off  int
	next *block
}

// Pending is a payload together with its pre-allocated successor sentinel.
// Building one does all the allocation an append needs, so it can happen off
// the flow lock.
type Pending struct {
	data []byte
	next *block
}

// NewPending takes ownership of payload.
func NewPending(payload []byte) *Pending {
	return &Pending{data: payload, next: &block{}}
}

// Len returns the payload size.
func (p *Pending) Len() int { return len(p.data) }

// Stream is one logical byte stream.
type Stream struct {
	head   *block
	tail   *block
	nextID uint64
	unread int
	blocks int
}

// New returns an empty stream holding only the sentinel block.
func New() *Stream {
	s := &Stream{tail: &block{}}
	s.head = s.tail
	return s
}

// Append copies payload into a new block at the tail.
func (s *Stream) Append(payload []byte) int {
	if len(payload) == 0 {
		return 0
	}
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return s.AppendPending(NewPending(buf))
}

// AppendPending links p into the stream. The pending payload becomes the
// content of the current sentinel and its successor becomes the new sentinel.
func (s *Stream) AppendPending(p *Pending) int {
	if p == nil || len(p.data) == 0 {
		return 0
	}
	cur := s.tail
	cur.data = p.data
	cur.off = 0
	cur.id = s.nextID
	s.nextID++

	p.next.id = s.nextID
	cur.next = p.next
	s.tail = p.next
	// the pending value must not be reused
	p.data, p.next = nil, nil

	s.unread += len(cur.data)
	s.blocks++
	return len(cur.data)
}

// Read consumes up to len(dst) bytes from the head of the stream. A short
// count is not an error; ErrEmpty is returned only when nothing was unread.
func (s *Stream) Read(dst []byte) (int, error) {
	if s.head == s.tail {
		return 0, ErrEmpty
	}
	n := 0
	for n < len(dst) && s.head != s.tail {
		b := s.head
		c := copy(dst[n:], b.data[b.off:])
		b.off += c
		n += c
		if b.off == len(b.data) {
			s.head = b.next
			b.next, b.data = nil, nil
			s.blocks--
		}
	}
	s.unread -= n
	return n, nil
}

// Len returns the number of unread bytes.
func (s *Stream) Len() int { return s.unread }

// Blocks returns the number of blocks holding unread bytes.
func (s *Stream) Blocks() int { return s.blocks }

// Empty reports whether the head has reached the sentinel.
func (s *Stream) Empty() bool { return s.head == s.tail }

// HeadID returns the id of the oldest unconsumed block.
func (s *Stream) HeadID() uint64 { return s.head.id }

// TailID returns the id of the sentinel block.
func (s *Stream) TailID() uint64 { return s.tail.id }

// Reset drops all unread data and returns the number of bytes dropped.
func (s *Stream) Reset() int {
	dropped := s.unread
	for b := s.head; b != s.tail; {
		next := b.next
		b.next, b.data = nil, nil
		b = next
	}
	s.head = s.tail
	s.unread = 0
	s.blocks = 0
	return dropped
}
