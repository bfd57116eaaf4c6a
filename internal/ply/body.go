package ply

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// maxPrealloc caps the capacity reserved up front from a declared vertex
// count, so a lying header cannot force a huge allocation before the body
// proves it holds that many records.
const maxPrealloc = 1 << 20

// Position is a point in model space.
type Position [3]float32

// Color is an RGBA color with 8 bits per channel.
type Color [4]uint8

// Cloud holds decoded vertices. Positions and Colors always have the same
// length.
type Cloud struct {
	Positions []Position
	Colors    []Color
}

// Len returns the number of points.
func (c *Cloud) Len() int {
	return len(c.Positions)
}

// ReadBody decodes h.VertexCount vertex records from r, which must be
// positioned at the first body byte.
//
// Fields a layout does not declare carry over from the previous vertex,
// starting from the origin and opaque white. Sixteen-bit color channels keep
// only their high byte; double precision coordinates are narrowed to float32.
func ReadBody(h *Header, r io.Reader) (*Cloud, error) {
	n := h.VertexCount
	capHint := n
	if capHint > maxPrealloc {
		capHint = maxPrealloc
	}
	cloud := &Cloud{
		Positions: make([]Position, 0, capHint),
		Colors:    make([]Color, 0, capHint),
	}

	br := bufio.NewReaderSize(r, 64*1024)
	rec := make([]byte, h.Stride())

	pos := Position{0, 0, 0}
	col := Color{255, 255, 255, 255}

	for i := 0; i < n; i++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			return nil, bodyError(i, n, err)
		}

		off := 0
		for _, p := range h.Properties {
			if p.IsPad() {
				off += p.Size()
				continue
			}
			b := rec[off:]
			switch p {
			case PropertyR8:
				col[0] = b[0]
			case PropertyG8:
				col[1] = b[0]
			case PropertyB8:
				col[2] = b[0]
			case PropertyA8:
				col[3] = b[0]

			case PropertyR16:
				col[0] = uint8(binary.LittleEndian.Uint16(b) >> 8)
			case PropertyG16:
				col[1] = uint8(binary.LittleEndian.Uint16(b) >> 8)
			case PropertyB16:
				col[2] = uint8(binary.LittleEndian.Uint16(b) >> 8)
			case PropertyA16:
				col[3] = uint8(binary.LittleEndian.Uint16(b) >> 8)

			case PropertyX32:
				pos[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
			case PropertyY32:
				pos[1] = math.Float32frombits(binary.LittleEndian.Uint32(b))
			case PropertyZ32:
				pos[2] = math.Float32frombits(binary.LittleEndian.Uint32(b))

			case PropertyX64:
				pos[0] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			case PropertyY64:
				pos[1] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			case PropertyZ64:
				pos[2] = float32(math.Float64frombits(binary.LittleEndian.Uint64(b)))
			}
			off += p.Size()
		}

		cloud.Positions = append(cloud.Positions, pos)
		cloud.Colors = append(cloud.Colors, col)
	}

	return cloud, nil
}

func bodyError(i, n int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &FormatError{
			Kind:   ErrTruncatedBody,
			Detail: fmt.Sprintf("vertex %d of %d", i, n),
			Err:    io.ErrUnexpectedEOF,
		}
	}
	return fmt.Errorf("read vertex %d of %d: %w", i, n, err)
}
