package ply

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// Magic is the first header line of every PLY file.
	Magic = "ply"

	// FormatBinaryLE is the only format line this package decodes.
	FormatBinaryLE = "format binary_little_endian 1.0"

	// EndHeader terminates the textual header.
	EndHeader = "end_header"

	// MaxHeaderSize bounds the textual header so a missing end_header cannot
	// make the reader scan an entire body.
	MaxHeaderSize = 1 << 20
)

// Header is the vertex layout declared by a PLY header.
type Header struct {
	// Properties lists vertex fields in on-disk order. Duplicates are kept.
	Properties []Property

	// VertexCount is the declared number of vertices. Zero when the file
	// declares no vertex element.
	VertexCount int

	// Comments holds the text of every "comment" line, in order.
	Comments []string

	// Size is the number of bytes the textual header occupies, including
	// the end_header line.
	Size int64
}

// Stride returns the size in bytes of one vertex record.
func (h *Header) Stride() int {
	n := 0
	for _, p := range h.Properties {
		n += p.Size()
	}
	return n
}

// BodySize returns the number of body bytes the vertex element occupies.
func (h *Header) BodySize() int64 {
	return int64(h.VertexCount) * int64(h.Stride())
}

// ReadHeader parses the textual header from r and returns the vertex layout
// together with the number of bytes the header occupies.
//
// r is read through a buffer and may be consumed past the end of the header.
// Callers that go on to decode the body must reposition their own cursor to
// the returned offset rather than continue reading from r.
func ReadHeader(r io.Reader) (*Header, int64, error) {
	lr := &lineReader{r: bufio.NewReader(r)}

	line, err := lr.next()
	if err != nil {
		return nil, 0, err
	}
	if line != Magic {
		return nil, 0, headerError(ErrBadMagic, lr.n, line, nil)
	}

	line, err = lr.next()
	if err != nil {
		return nil, 0, err
	}
	if line != FormatBinaryLE {
		return nil, 0, headerError(ErrUnsupportedFormat, lr.n, line, nil)
	}

	h := &Header{}
	skip := false
	for {
		line, err = lr.next()
		if err != nil {
			return nil, 0, err
		}
		if line == EndHeader {
			break
		}

		col := strings.Fields(line)
		if len(col) == 0 {
			continue
		}

		switch col[0] {
		case "comment":
			h.Comments = append(h.Comments, strings.TrimSpace(strings.TrimPrefix(line, "comment")))

		case "element":
			if len(col) < 3 {
				return nil, 0, headerError(ErrMalformedElement, lr.n, line, nil)
			}
			if col[1] != "vertex" {
				// Only vertex properties are decoded.
				skip = true
				continue
			}
			count, err := strconv.Atoi(col[2])
			if err != nil {
				return nil, 0, headerError(ErrMalformedElement, lr.n, line, err)
			}
			if count < 0 {
				return nil, 0, headerError(ErrMalformedElement, lr.n, line, nil)
			}
			h.VertexCount = count
			skip = false

		case "property":
			if skip {
				continue
			}
			if len(col) < 3 {
				return nil, 0, headerError(ErrMalformedProperty, lr.n, line, nil)
			}
			p, err := parseProperty(col[1], col[2])
			if err != nil {
				return nil, 0, headerError(err, lr.n, line, nil)
			}
			h.Properties = append(h.Properties, p)
		}
	}

	h.Size = lr.consumed
	return h, lr.consumed, nil
}

// parseProperty resolves one "property <type> <name>" declaration.
func parseProperty(typ, name string) (Property, error) {
	p, ok := resolve(provisional(name), typ)
	if !ok {
		return PropertyInvalid, ErrUnsupportedPropertyType
	}
	if p.Size() != scalarSize(typ) {
		return PropertyInvalid, ErrTypeMismatch
	}
	return p, nil
}

// lineReader yields newline-terminated header lines and tracks how many
// bytes of the underlying stream they account for.
type lineReader struct {
	r        *bufio.Reader
	n        int   // lines read
	consumed int64 // line lengths plus one newline byte each
}

func (lr *lineReader) next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && !(err == io.EOF && s != "") {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return "", headerError(ErrTruncatedHeader, lr.n+1, "", err)
	}
	line := strings.TrimSuffix(s, "\n")

	lr.n++
	lr.consumed += int64(len(line)) + 1
	if lr.consumed > MaxHeaderSize {
		return "", headerError(ErrTruncatedHeader, lr.n, "",
			fmt.Errorf("no %s within %d bytes", EndHeader, MaxHeaderSize))
	}
	return line, nil
}
