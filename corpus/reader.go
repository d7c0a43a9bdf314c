package corpus

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
)

// Reader loads the arrays of one utterance.
type Reader interface {
	// ReadFeatures returns a [frames][dim] feature matrix.
	ReadFeatures(path string) ([][]float32, error)
	// ReadLabels returns a label sequence of class indices.
	ReadLabels(path string) ([]int32, error)
}

// NpyReader reads NumPy .npy files: 2-D float arrays for features and 1-D
// integer arrays for labels.
type NpyReader struct{}

// ReadFeatures implements Reader.
func (NpyReader) ReadFeatures(path string) ([][]float32, error) {
	r, closeFn, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	shape := r.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("features %s: expected a 2-D array, got shape %v", path, shape)
	}
	rows, cols := shape[0], shape[1]
	flat, err := readFloats(r, rows*cols)
	if err != nil {
		return nil, fmt.Errorf("features %s: %w", path, err)
	}
	if r.Header.Descr.Fortran {
		flat = transpose(flat, rows, cols)
	}

	out := make([][]float32, rows)
	for i := range rows {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out, nil
}

// ReadLabels implements Reader.
func (NpyReader) ReadLabels(path string) ([]int32, error) {
	r, closeFn, err := openNpy(path)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	shape := r.Header.Descr.Shape
	if len(shape) != 1 {
		return nil, fmt.Errorf("labels %s: expected a 1-D array, got shape %v", path, shape)
	}
	labels, err := readInts(r, shape[0])
	if err != nil {
		return nil, fmt.Errorf("labels %s: %w", path, err)
	}
	return labels, nil
}

func openNpy(path string) (*npyio.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r, err := npyio.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read npy header of %s: %w", path, err)
	}
	return r, func() { f.Close() }, nil
}

func readFloats(r *npyio.Reader, n int) ([]float32, error) {
	switch dt := r.Header.Descr.Type; dt {
	case "<f4":
		out := make([]float32, n)
		if err := r.Read(&out); err != nil {
			return nil, err
		}
		return out, nil
	case "<f8":
		raw := make([]float64, n)
		if err := r.Read(&raw); err != nil {
			return nil, err
		}
		out := make([]float32, n)
		for i, v := range raw {
			out[i] = float32(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported feature dtype %q", dt)
	}
}

func readInts(r *npyio.Reader, n int) ([]int32, error) {
	switch dt := r.Header.Descr.Type; dt {
	case "<i4":
		out := make([]int32, n)
		if err := r.Read(&out); err != nil {
			return nil, err
		}
		return out, nil
	case "<i8":
		return convertInts[int64](r, n)
	case "<i2":
		return convertInts[int16](r, n)
	case "|i1":
		return convertInts[int8](r, n)
	case "|u1":
		return convertInts[uint8](r, n)
	case "<u2":
		return convertInts[uint16](r, n)
	case "<f4":
		return convertInts[float32](r, n)
	case "<f8":
		return convertInts[float64](r, n)
	default:
		return nil, fmt.Errorf("unsupported label dtype %q", dt)
	}
}

type number interface {
	~int8 | ~int16 | ~int64 | ~uint8 | ~uint16 | ~float32 | ~float64
}

func convertInts[T number](r *npyio.Reader, n int) ([]int32, error) {
	raw := make([]T, n)
	if err := r.Read(&raw); err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i, v := range raw {
		out[i] = int32(v)
	}
	return out, nil
}

// transpose converts a column-major rows×cols buffer to row-major.
func transpose(colMajor []float32, rows, cols int) []float32 {
	out := make([]float32, len(colMajor))
	for c := range cols {
		for r := range rows {
			out[r*cols+c] = colMajor[c*rows+r]
		}
	}
	return out
}
