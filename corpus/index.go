package corpus

import (
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// IndexLoader builds the utterance index of one corpus split.
type IndexLoader interface {
	LoadIndex() (*Index, error)
}

// Index lists the utterances of a split sorted by ascending frame count.
// Names, InputPaths, FrameNums and every LabelPaths[stream] are parallel:
// position i of each describes the same utterance. An Index is never
// reordered once built.
type Index struct {
	Names      []string
	InputPaths []string
	// LabelPaths holds one path list per label stream.
	LabelPaths [][]string
	FrameNums  []int
}

// Len returns the number of utterances.
func (x *Index) Len() int { return len(x.Names) }

// Streams returns the number of label streams.
func (x *Index) Streams() int { return len(x.LabelPaths) }

// PathFunc maps an utterance name to its feature path and label paths.
type PathFunc func(name string) (input string, labels []string)

// BuildIndex sorts the frame count mapping by ascending frame count, breaking
// ties by name, and resolves every utterance's paths with paths.
func BuildIndex(frameNums map[string]int, paths PathFunc) *Index {
	type entry struct {
		name   string
		frames int
	}
	entries := make([]entry, 0, len(frameNums))
	for name, n := range frameNums {
		entries = append(entries, entry{name, n})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.frames, b.frames); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})

	x := &Index{
		Names:      make([]string, len(entries)),
		InputPaths: make([]string, len(entries)),
		FrameNums:  make([]int, len(entries)),
	}
	for i, e := range entries {
		input, labels := paths(e.name)
		if x.LabelPaths == nil {
			x.LabelPaths = make([][]string, len(labels))
			for s := range x.LabelPaths {
				x.LabelPaths[s] = make([]string, len(entries))
			}
		}
		x.Names[i] = e.name
		x.InputPaths[i] = input
		x.FrameNums[i] = e.frames
		for s, p := range labels {
			x.LabelPaths[s][i] = p
		}
	}
	return x
}

// LoadIndex validates the layout, reads frame_num.json and builds the index.
func (l Layout) LoadIndex() (*Index, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	frameNums, err := ReadFrameNums(l.FrameNumPath())
	if err != nil {
		return nil, err
	}
	x := BuildIndex(frameNums, l.Paths)
	if x.LabelPaths == nil {
		x.LabelPaths = make([][]string, len(l.LabelTypes))
	}
	return x, nil
}

// ReadFrameNums reads a JSON object mapping utterance names to frame counts.
func ReadFrameNums(path string) (map[string]int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame counts: %w", err)
	}
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to parse frame counts %s: %w", path, err)
	}
	return m, nil
}

// WriteFrameNums writes the frame count mapping read by ReadFrameNums.
func WriteFrameNums(path string, m map[string]int) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// StaticIndex is an IndexLoader returning an index built in memory.
type StaticIndex struct {
	Index *Index
}

// LoadIndex implements IndexLoader.
func (s StaticIndex) LoadIndex() (*Index, error) {
	if s.Index == nil {
		return nil, fmt.Errorf("%w: nil index", ErrConfig)
	}
	return s.Index, nil
}

// Stats summarises the frame counts of an index.
type Stats struct {
	Utterances  int
	MinFrames   int
	MaxFrames   int
	TotalFrames int
	MeanFrames  float64
}

// Stats computes the frame count summary. The index is sorted, so the
// extremes are its first and last entries.
func (x *Index) Stats() Stats {
	n := x.Len()
	if n == 0 {
		return Stats{}
	}
	s := Stats{
		Utterances: n,
		MinFrames:  x.FrameNums[0],
		MaxFrames:  x.FrameNums[n-1],
	}
	for _, f := range x.FrameNums {
		s.TotalFrames += f
	}
	s.MeanFrames = float64(s.TotalFrames) / float64(n)
	return s
}
