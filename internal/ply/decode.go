package ply

import (
	"bytes"
	"fmt"
	"io"
)

// DefaultMaxVertices bounds the vertex count a caller accepts when it has
// no better limit. A layout with no properties decodes its declared count
// without reading a single body byte, so the count must be capped on its own.
const DefaultMaxVertices = 1 << 24

// Decode reads a complete PLY file from rs. The header is parsed first, then
// rs is repositioned to the exact end of the header before the body is read.
func Decode(rs io.ReadSeeker) (*Cloud, *Header, error) {
	return DecodeMax(rs, 0)
}

// DecodeMax is Decode with a cap on the declared vertex count, checked before
// any body byte is read. A maxVertices of 0 or less disables the cap.
func DecodeMax(rs io.ReadSeeker, maxVertices int) (*Cloud, *Header, error) {
	h, offset, err := ReadHeader(rs)
	if err != nil {
		return nil, nil, err
	}
	if maxVertices > 0 && h.VertexCount > maxVertices {
		return nil, nil, &FormatError{
			Kind:   ErrTooManyVertices,
			Detail: fmt.Sprintf("header declares %d, limit is %d", h.VertexCount, maxVertices),
		}
	}

	// An empty body needs no bytes after the header, even when the file ends
	// on an unterminated end_header line.
	if size := h.BodySize(); size > 0 {
		end, err := rs.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, nil, fmt.Errorf("seek to end: %w", err)
		}
		if remaining := end - offset; remaining < size {
			return nil, nil, &FormatError{
				Kind:   ErrTruncatedBody,
				Detail: fmt.Sprintf("body has %d bytes, layout needs %d", max(remaining, 0), size),
			}
		}
		if _, err := rs.Seek(offset, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("seek to body at %d: %w", offset, err)
		}
	}

	cloud, err := ReadBody(h, rs)
	if err != nil {
		return nil, nil, err
	}
	return cloud, h, nil
}

// DecodeBytes decodes a PLY file held in memory.
func DecodeBytes(data []byte) (*Cloud, *Header, error) {
	return Decode(bytes.NewReader(data))
}
