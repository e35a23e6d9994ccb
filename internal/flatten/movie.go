package flatten

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// EncodeMovie returns the raw buffer of m: its values as little-endian
// float64 in row-major order, the same layout as a C-contiguous float64 array.
func EncodeMovie(m rgpipe.Movie) ([]byte, error) {
	want, ok := m.Len()
	if !ok {
		return nil, fmt.Errorf("movie shape %s has a negative dimension or too many elements: %w", ShapeText(m.Shape), rgpipe.ErrMalformedRecord)
	}
	if len(m.Data) != want {
		return nil, fmt.Errorf("movie shape %s needs %d values, got %d: %w",
			ShapeText(m.Shape), want, len(m.Data), rgpipe.ErrMalformedRecord)
	}

	buf := make([]byte, 8*len(m.Data))
	for i, f := range m.Data {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf, nil
}

// ShapeText renders a shape as a tuple literal: (32, 32, 100), (5,) or ().
func ShapeText(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return "(" + strconv.Itoa(shape[0]) + ",)"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
