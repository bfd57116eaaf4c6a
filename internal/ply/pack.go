package ply

import (
	"encoding/binary"
	"math"
)

// PackedStride is the size of one point in a packed buffer: three float32
// coordinates followed by an RGBA color packed into a uint32.
const PackedStride = 16

// Pack lays the cloud out as a contiguous little-endian point buffer ready
// for upload to a GPU structured buffer. The color word holds red in its
// lowest byte and alpha in its highest.
func (c *Cloud) Pack() []byte {
	buf := make([]byte, len(c.Positions)*PackedStride)
	for i, p := range c.Positions {
		b := buf[i*PackedStride:]
		binary.LittleEndian.PutUint32(b[0:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(b[8:], math.Float32bits(p[2]))
		col := c.Colors[i]
		binary.LittleEndian.PutUint32(b[12:],
			uint32(col[0])|uint32(col[1])<<8|uint32(col[2])<<16|uint32(col[3])<<24)
	}
	return buf
}

// Bounds returns the axis-aligned bounding box of the cloud. Both corners are
// zero for an empty cloud.
func (c *Cloud) Bounds() (lo, hi Position) {
	if len(c.Positions) == 0 {
		return lo, hi
	}
	lo, hi = c.Positions[0], c.Positions[0]
	for _, p := range c.Positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return lo, hi
}
