package ply

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// record assembles one little-endian vertex record from typed field values.
func record(fields ...interface{}) []byte {
	var buf bytes.Buffer
	for _, f := range fields {
		if err := binary.Write(&buf, binary.LittleEndian, f); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func plyFile(head string, records ...[]byte) []byte {
	data := []byte(head)
	for _, r := range records {
		data = append(data, r...)
	}
	return data
}

func TestDecodeXYZRGB(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"element vertex 3",
		"property float x",
		"property float y",
		"property float z",
		"property uchar red",
		"property uchar green",
		"property uchar blue",
		"end_header",
	)
	data := plyFile(head,
		record(float32(1), float32(2), float32(3), uint8(10), uint8(20), uint8(30)),
		record(float32(-1.5), float32(0), float32(0.25), uint8(0), uint8(128), uint8(255)),
		record(float32(100), float32(200), float32(300), uint8(1), uint8(2), uint8(3)),
	)
	require.Len(t, data, len(head)+45)

	cloud, h, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 3, h.VertexCount)

	want := &Cloud{
		Positions: []Position{{1, 2, 3}, {-1.5, 0, 0.25}, {100, 200, 300}},
		Colors:    []Color{{10, 20, 30, 255}, {0, 128, 255, 255}, {1, 2, 3, 255}},
	}
	if diff := cmp.Diff(want, cloud); diff != "" {
		t.Errorf("decoded cloud mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSixteenBitColorKeepsHighByte(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"element vertex 1",
		"property ushort red",
		"property ushort alpha",
		"end_header",
	)
	cloud, _, err := DecodeBytes(plyFile(head, record(uint16(0x1234), uint16(0x00ff))))
	require.NoError(t, err)

	require.Equal(t, 1, cloud.Len())
	assert.Equal(t, Color{0x12, 255, 255, 0x00}, cloud.Colors[0])
}

func TestDecodeDoublePositionsNarrowed(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"element vertex 1",
		"property double x",
		"property double y",
		"property double z",
		"end_header",
	)
	cloud, _, err := DecodeBytes(plyFile(head, record(0.1, -2.5, math.Pi)))
	require.NoError(t, err)

	assert.Equal(t, Position{float32(0.1), -2.5, float32(math.Pi)}, cloud.Positions[0])
}

func TestDecodeSkipsPadding(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"element vertex 2",
		"property uchar flags",
		"property float x",
		"property short ring",
		"property float y",
		"property int label",
		"property float z",
		"property double time",
		"property uchar green",
		"end_header",
	)
	data := plyFile(head,
		record(uint8(0xaa), float32(1), int16(-7), float32(2), int32(99), float32(3), 12.5, uint8(40)),
		record(uint8(0xbb), float32(4), int16(8), float32(5), int32(-1), float32(6), 13.5, uint8(50)),
	)

	cloud, h, err := DecodeBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 1+4+2+4+4+4+8+1, h.Stride())
	assert.Equal(t, []Position{{1, 2, 3}, {4, 5, 6}}, cloud.Positions)
	assert.Equal(t, []Color{{255, 40, 255, 255}, {255, 50, 255, 255}}, cloud.Colors)
}

func TestDecodeDefaultsAndCarryOver(t *testing.T) {
	t.Run("no color properties", func(t *testing.T) {
		head := header(
			"ply",
			"format binary_little_endian 1.0",
			"element vertex 2",
			"property float x",
			"end_header",
		)
		cloud, _, err := DecodeBytes(plyFile(head, record(float32(7)), record(float32(8))))
		require.NoError(t, err)

		assert.Equal(t, []Position{{7, 0, 0}, {8, 0, 0}}, cloud.Positions)
		assert.Equal(t, []Color{{255, 255, 255, 255}, {255, 255, 255, 255}}, cloud.Colors)
	})

	t.Run("no properties at all", func(t *testing.T) {
		head := header("ply", "format binary_little_endian 1.0", "element vertex 3", "end_header")
		cloud, _, err := DecodeBytes([]byte(head))
		require.NoError(t, err)

		assert.Equal(t, 3, cloud.Len())
		for i := range cloud.Positions {
			assert.Equal(t, Position{0, 0, 0}, cloud.Positions[i])
			assert.Equal(t, Color{255, 255, 255, 255}, cloud.Colors[i])
		}
	})

	t.Run("duplicate field keeps last value", func(t *testing.T) {
		head := header(
			"ply",
			"format binary_little_endian 1.0",
			"element vertex 1",
			"property uchar red",
			"property uchar red",
			"end_header",
		)
		cloud, _, err := DecodeBytes(plyFile(head, record(uint8(1), uint8(2))))
		require.NoError(t, err)
		assert.Equal(t, Color{2, 255, 255, 255}, cloud.Colors[0])
	})
}

func TestDecodeTruncatedBody(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"element vertex 3",
		"property float x",
		"property float y",
		"property float z",
		"end_header",
	)
	full := plyFile(head,
		record(float32(1), float32(1), float32(1)),
		record(float32(2), float32(2), float32(2)),
		record(float32(3), float32(3), float32(3)),
	)

	for _, cut := range []int{1, 4, 12, 13, 36} {
		cloud, h, err := DecodeBytes(full[:len(full)-cut])
		assert.ErrorIs(t, err, ErrTruncatedBody, "cut %d", cut)
		assert.Nil(t, cloud, "no partial cloud")
		assert.Nil(t, h)
		assert.Equal(t, "truncated_body", KindName(err))
	}
}

func TestReadBodyTruncatedStream(t *testing.T) {
	h := &Header{VertexCount: 2, Properties: []Property{PropertyX32, PropertyR16}}

	cloud, err := ReadBody(h, bytes.NewReader(record(float32(1), uint16(5), float32(2))))
	require.Error(t, err)
	assert.Nil(t, cloud)

	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrTruncatedBody, fe.Kind)
	assert.Contains(t, fe.Error(), "vertex 1 of 2")
}

func TestReadBodyHugeCountDoesNotPreallocate(t *testing.T) {
	h := &Header{VertexCount: math.MaxInt32, Properties: []Property{PropertyX32}}

	_, err := ReadBody(h, bytes.NewReader(record(float32(1))))
	assert.ErrorIs(t, err, ErrTruncatedBody)
}

// TestHeaderOffsetIsAuthoritative reads the header through a buffered reader
// that consumes the whole file, then decodes the body from the reported
// offset and from the true header end.
func TestHeaderOffsetIsAuthoritative(t *testing.T) {
	head := header(
		"ply",
		"format binary_little_endian 1.0",
		"comment some tools write comments",
		"element vertex 2",
		"property float x",
		"property float y",
		"property float z",
		"property uchar alpha",
		"element edge 0",
		"property int vertex1",
		"end_header",
	)
	data := plyFile(head,
		record(float32(1), float32(2), float32(3), uint8(9)),
		record(float32(4), float32(5), float32(6), uint8(8)),
	)

	r := bytes.NewReader(data)
	h, offset, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, int64(len(head)), offset)
	assert.Equal(t, 0, r.Len(), "header reader over-reads the body")

	fromOffset, err := ReadBody(h, bytes.NewReader(data[offset:]))
	require.NoError(t, err)
	fromTrueEnd, err := ReadBody(h, strings.NewReader(string(data[len(head):])))
	require.NoError(t, err)

	assert.Equal(t, fromTrueEnd, fromOffset)
	assert.Equal(t, []Color{{255, 255, 255, 9}, {255, 255, 255, 8}}, fromOffset.Colors)
}

func TestDecodeMaxRejectsOversizedCount(t *testing.T) {
	// No properties means no body bytes, so only the count bounds the work.
	head := header("ply", "format binary_little_endian 1.0", "element vertex 50000000", "end_header")

	cloud, h, err := DecodeMax(bytes.NewReader([]byte(head)), DefaultMaxVertices)
	require.Error(t, err)
	assert.Nil(t, cloud)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrTooManyVertices)
	assert.Equal(t, "too_many_vertices", KindName(err))
	assert.Contains(t, err.Error(), "limit is 16777216")

	small := header("ply", "format binary_little_endian 1.0", "element vertex 4", "property float x", "end_header")
	data := plyFile(small, record(float32(1)), record(float32(2)), record(float32(3)), record(float32(4)))

	_, _, err = DecodeMax(bytes.NewReader(data), 3)
	assert.ErrorIs(t, err, ErrTooManyVertices)

	cloud, _, err = DecodeMax(bytes.NewReader(data), 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cloud.Len())

	cloud, _, err = DecodeMax(bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, cloud.Len())
}

func TestDecodeEmptyBodyWithoutTrailingNewline(t *testing.T) {
	for _, text := range []string{
		"ply\nformat binary_little_endian 1.0\nelement vertex 0\nproperty float x\nend_header",
		"ply\nformat binary_little_endian 1.0\nelement vertex 2\nend_header",
	} {
		cloud, h, err := DecodeBytes([]byte(text))
		require.NoError(t, err, text)
		assert.Equal(t, h.VertexCount, cloud.Len())
		assert.Equal(t, int64(len(text)+1), h.Size)
	}

	// A non-empty layout still needs its body bytes.
	_, _, err := DecodeBytes([]byte("ply\nformat binary_little_endian 1.0\nelement vertex 1\nproperty float x\nend_header"))
	assert.ErrorIs(t, err, ErrTruncatedBody)
}

func TestDecodeHeaderErrorPropagates(t *testing.T) {
	_, _, err := DecodeBytes([]byte(header("plyx")))
	assert.ErrorIs(t, err, ErrBadMagic)
	assert.Equal(t, "bad_magic", KindName(err))
	assert.Equal(t, "other", KindName(errors.New("boom")))
}
