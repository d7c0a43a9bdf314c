package labels

import "fmt"

// Sparse is a batch of label sequences in COO form: Indices[k] is the
// (row, position) of Values[k] and Shape is (rows, longest row).
type Sparse struct {
	Indices [][2]int64
	Values  []int32
	Shape   [2]int64
}

// Hypothesis is one decoded label sequence. A decoder that emits nothing
// for an utterance yields an empty hypothesis.
type Hypothesis struct {
	Labels []int32
}

// Empty reports whether nothing was decoded.
func (h Hypothesis) Empty() bool { return len(h.Labels) == 0 }

// ToSparse converts a padded [rows][cols] label matrix, stored flat, to
// sparse form, dropping every padValue entry.
func ToSparse(values []int32, rows, cols int, padValue int32) (Sparse, error) {
	if len(values) != rows*cols {
		return Sparse{}, fmt.Errorf("got %d values for a %dx%d matrix", len(values), rows, cols)
	}
	s := Sparse{Shape: [2]int64{int64(rows), 0}}
	for r := range rows {
		n := 0
		for c := range cols {
			v := values[r*cols+c]
			if v == padValue {
				continue
			}
			s.Indices = append(s.Indices, [2]int64{int64(r), int64(n)})
			s.Values = append(s.Values, v)
			n++
		}
		s.Shape[1] = max(s.Shape[1], int64(n))
	}
	return s, nil
}

// FromSparse splits a sparse batch into one hypothesis per row. Rows with no
// entries give empty hypotheses. Entries are placed by their position, so
// they need not be ordered.
func FromSparse(s Sparse) ([]Hypothesis, error) {
	if len(s.Indices) != len(s.Values) {
		return nil, fmt.Errorf("sparse batch has %d indices and %d values", len(s.Indices), len(s.Values))
	}
	if s.Shape[0] < 0 {
		return nil, fmt.Errorf("sparse batch has negative shape %v", s.Shape)
	}
	lens := make([]int, s.Shape[0])
	for _, idx := range s.Indices {
		r, p := idx[0], idx[1]
		if r < 0 || r >= s.Shape[0] || p < 0 {
			return nil, fmt.Errorf("index (%d, %d) out of shape %v", r, p, s.Shape)
		}
		lens[r] = max(lens[r], int(p)+1)
	}
	out := make([]Hypothesis, s.Shape[0])
	for r, n := range lens {
		if n > 0 {
			out[r].Labels = make([]int32, n)
		}
	}
	for k, idx := range s.Indices {
		out[idx[0]].Labels[idx[1]] = s.Values[k]
	}
	return out, nil
}
