package sink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kshedden/gonpy"

	"scanclean/internal/scantable"
)

// ErrBadArray is returned for .npy data this package did not write.
var ErrBadArray = errors.New("unsupported npy array")

// Matrix flattens t into row-major float64 values. Unrecognized columns are
// parsed as numbers, falling back to NaN.
func Matrix(t scantable.Table) []float64 {
	out := make([]float64, 0, len(t.Rows)*len(t.Columns))
	for _, r := range t.Rows {
		for _, c := range t.Columns {
			v, ok := r.Field(c)
			if !ok {
				v = scantable.ParseNumber(r.Extra[c])
			}
			out = append(out, v)
		}
	}
	return out
}

// WriteArray writes t as a version 1.0 .npy file of little-endian float64
// in C order with shape (rows, columns).
func WriteArray(w io.Writer, t scantable.Table) error {
	bw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(flushCloser{bw})
	if err != nil {
		return err
	}
	npw.Shape = []int{len(t.Rows), len(t.Columns)}
	// WriteFloat64 closes the writer, which flushes bw.
	return npw.WriteFloat64(Matrix(t))
}

type flushCloser struct{ *bufio.Writer }

func (f flushCloser) Close() error { return f.Flush() }

// Array is a decoded two-dimensional float64 .npy file.
type Array struct {
	Rows, Cols int
	Data       []float64
}

// At returns the value at row i, column j.
func (a Array) At(i, j int) float64 { return a.Data[i*a.Cols+j] }

// ReadArray decodes a float64 .npy file of one or two dimensions.
func ReadArray(path string) (Array, error) {
	f, err := os.Open(path)
	if err != nil {
		return Array{}, err
	}
	defer f.Close()
	rdr, err := gonpy.NewReader(bufio.NewReader(f))
	if err != nil {
		return Array{}, fmt.Errorf("%w: %s: %v", ErrBadArray, path, err)
	}
	if rdr.ColumnMajor {
		return Array{}, fmt.Errorf("%w: %s: fortran order", ErrBadArray, path)
	}
	var rows, cols int
	switch len(rdr.Shape) {
	case 1:
		rows, cols = rdr.Shape[0], 1
	case 2:
		rows, cols = rdr.Shape[0], rdr.Shape[1]
	default:
		return Array{}, fmt.Errorf("%w: %s: shape %v", ErrBadArray, path, rdr.Shape)
	}
	data, err := rdr.GetFloat64()
	if err != nil {
		return Array{}, fmt.Errorf("%w: %s: %v", ErrBadArray, path, err)
	}
	if len(data) != rows*cols {
		return Array{}, fmt.Errorf("%w: %s: want %d values, have %d", ErrBadArray, path, rows*cols, len(data))
	}
	return Array{Rows: rows, Cols: cols, Data: data}, nil
}
