package id

import (
	"strconv"
	"sync"
	"time"
)

const (
	seqBits = 20
	seqMask = 1<<seqBits - 1
	msMask  = 1<<(64-seqBits) - 1
)

// ID is a time-ordered identifier: [44 bits ms_timestamp][20 bits sequence].
type ID uint64

// Millis returns the millisecond timestamp embedded in the ID.
func (i ID) Millis() int64 { return int64(uint64(i) >> seqBits) }

// Seq returns the per-millisecond sequence embedded in the ID.
func (i ID) Seq() uint32 { return uint32(uint64(i) & seqMask) }

// String returns "s-" followed by the zero padded hex value.
func (i ID) String() string {
	s := strconv.FormatUint(uint64(i), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return "s-" + s
}

// Generator produces monotonically increasing IDs per process.
type Generator struct {
	mu       sync.Mutex
	lastMs   int64
	sequence uint32
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator { return &Generator{} }

// NowMs returns current time in milliseconds since Unix epoch.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// Next returns a new ID. If clock goes backwards, it uses lastMs and increments sequence.
// If sequence overflows within the same millisecond, it sleeps until the next ms.
func (g *Generator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := NowMs()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		if g.sequence == seqMask {
			for {
				ms = NowMs()
				if ms > g.lastMs {
					break
				}
				time.Sleep(time.Millisecond / 8)
			}
			g.sequence = 0
		} else {
			g.sequence++
		}
	} else {
		g.sequence = 0
	}

	g.lastMs = ms
	return ID(uint64(ms)&msMask<<seqBits | uint64(g.sequence))
}
