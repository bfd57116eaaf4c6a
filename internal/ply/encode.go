package ply

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encode writes c as a binary little-endian PLY file with float x, y, z and
// uchar red, green, blue, alpha vertex properties.
func Encode(w io.Writer, c *Cloud) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\n%s\n", Magic, FormatBinaryLE)
	fmt.Fprintf(bw, "element vertex %d\n", len(c.Positions))
	for _, name := range []string{"x", "y", "z"} {
		fmt.Fprintf(bw, "property float %s\n", name)
	}
	for _, name := range []string{"red", "green", "blue", "alpha"} {
		fmt.Fprintf(bw, "property uchar %s\n", name)
	}
	fmt.Fprintf(bw, "%s\n", EndHeader)

	var rec [16]byte
	for i, p := range c.Positions {
		binary.LittleEndian.PutUint32(rec[0:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(rec[4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(rec[8:], math.Float32bits(p[2]))
		copy(rec[12:], c.Colors[i][:])
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}
