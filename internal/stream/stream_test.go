package stream

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEmptyStream(t *testing.T) {
	s := New()
	assert.True(t, s.Empty())
	assert.Equal(t, s.HeadID(), s.TailID())

	n, err := s.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestReadCrossesBlocks(t *testing.T) {
	s := New()
	require.Equal(t, 2, s.Append([]byte("AB")))
	require.Equal(t, 2, s.Append([]byte("CD")))
	assert.Equal(t, 4, s.Len())
	assert.Equal(t, 2, s.Blocks())

	buf := make([]byte, 3)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(buf[:n]))
	assert.Equal(t, 1, s.Blocks())

	n, err = s.Read(buf[:1])
	require.NoError(t, err)
	assert.Equal(t, "D", string(buf[:n]))
	assert.True(t, s.Empty())

	_, err = s.Read(buf)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestShortRead(t *testing.T) {
	s := New()
	s.Append([]byte("data"))

	buf := make([]byte, 10)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "data", string(buf[:n]))
}

func TestAppendCopiesPayload(t *testing.T) {
	s := New()
	p := []byte("xy")
	s.Append(p)
	p[0] = 'z'

	buf := make([]byte, 2)
	_, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "xy", string(buf))
}

func TestZeroLengthAppendIgnored(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Append(nil))
	assert.Equal(t, 0, s.AppendPending(NewPending([]byte{})))
	assert.True(t, s.Empty())
	assert.Equal(t, uint64(0), s.TailID())
}

func TestAppendPendingConsumesPending(t *testing.T) {
	s := New()
	p := NewPending([]byte("hello"))
	assert.Equal(t, 5, p.Len())
	assert.Equal(t, 5, s.AppendPending(p))
	// a second append of the same pending is a no-op
	assert.Equal(t, 0, s.AppendPending(p))
	assert.Equal(t, 5, s.Len())
}

func TestBlockIDsIncrease(t *testing.T) {
	s := New()
	s.Append([]byte("a"))
	s.Append([]byte("b"))
	assert.Equal(t, uint64(0), s.HeadID())
	assert.Equal(t, uint64(2), s.TailID())

	_, _ = s.Read(make([]byte, 1))
	assert.Equal(t, uint64(1), s.HeadID())
}

func TestReset(t *testing.T) {
	s := New()
	s.Append([]byte("abc"))
	s.Append([]byte("de"))
	_, _ = s.Read(make([]byte, 1))

	assert.Equal(t, 4, s.Reset())
	assert.True(t, s.Empty())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Blocks())

	s.Append([]byte("f"))
	assert.Equal(t, 1, s.Len())
}

// Bytes read back, concatenated, equal the bytes written in write order.
func TestFIFOProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New()
		var written, read bytes.Buffer

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(t, "write") {
				p := rapid.SliceOfN(rapid.Byte(), 0, 16).Draw(t, "payload")
				s.Append(p)
				written.Write(p)
			} else {
				buf := make([]byte, rapid.IntRange(1, 20).Draw(t, "max"))
				n, err := s.Read(buf)
				if err != nil && written.Len() != read.Len() {
					t.Fatalf("ErrEmpty with %d unread bytes", written.Len()-read.Len())
				}
				read.Write(buf[:n])
			}
			if s.Len() != written.Len()-read.Len() {
				t.Fatalf("Len()=%d, want %d", s.Len(), written.Len()-read.Len())
			}
		}
		rest := make([]byte, s.Len())
		if len(rest) > 0 {
			n, _ := s.Read(rest)
			read.Write(rest[:n])
		}
		if !bytes.Equal(written.Bytes(), read.Bytes()) {
			t.Fatalf("read %q, wrote %q", read.Bytes(), written.Bytes())
		}
		if !s.Empty() || s.Blocks() != 0 {
			t.Fatalf("stream not drained: blocks=%d", s.Blocks())
		}
	})
}
