// Package frames reshapes per-utterance feature sequences before they are
// batched: frame stacking/skipping shortens a sequence by concatenating
// neighbouring frames and striding over them, and splicing widens every frame
// with its left and right context.
//
// A feature sequence is a [][]float32 of shape [T][D]: T frames of D features.
// All functions return freshly allocated frames and never modify their input.
package frames

// StackedLen returns the number of frames StackFrames produces for a sequence
// of t frames when advancing by numSkip: ceil(t / numSkip).
func StackedLen(t, numSkip int) int {
	if t <= 0 {
		return 0
	}
	if numSkip < 1 {
		panic("frames: numSkip must be >= 1")
	}
	return (t + numSkip - 1) / numSkip
}

// StackFrames concatenates numStack consecutive frames and advances by
// numSkip frames. Output frame i is the concatenation of input frames
// i*numSkip .. i*numSkip+numStack-1; a window running past the last frame
// repeats the last frame, so sequences shorter than numStack still produce
// one output frame.
//
// The output has StackedLen(len(feats), numSkip) frames of width D*numStack.
func StackFrames(feats [][]float32, numStack, numSkip int) [][]float32 {
	if numStack < 1 || numSkip < 1 {
		panic("frames: numStack and numSkip must be >= 1")
	}
	t := len(feats)
	if t == 0 {
		return nil
	}
	if numStack == 1 && numSkip == 1 {
		return feats
	}
	d := len(feats[0])
	n := StackedLen(t, numSkip)

	// One backing array for the whole output keeps the stacked sequence
	// contiguous, the same layout batches use.
	buf := make([]float32, n*d*numStack)
	out := make([][]float32, n)
	for i := range n {
		row := buf[i*d*numStack : (i+1)*d*numStack]
		start := i * numSkip
		for j := range numStack {
			src := min(start+j, t-1)
			copy(row[j*d:(j+1)*d], feats[src])
		}
		out[i] = row
	}
	return out
}

// Splice appends splice frames of left and right context to every frame.
// Frame t of the output is the concatenation of frames t-splice .. t+splice,
// with indices clamped to the first and last frame. The output keeps the
// input length and has width D*(2*splice+1). A splice of 0 returns feats.
func Splice(feats [][]float32, splice int) [][]float32 {
	if splice < 0 {
		panic("frames: splice must be >= 0")
	}
	t := len(feats)
	if t == 0 || splice == 0 {
		return feats
	}
	d := len(feats[0])
	width := d * (2*splice + 1)

	buf := make([]float32, t*width)
	out := make([][]float32, t)
	for i := range t {
		row := buf[i*width : (i+1)*width]
		for j := -splice; j <= splice; j++ {
			src := min(max(i+j, 0), t-1)
			off := (j + splice) * d
			copy(row[off:off+d], feats[src])
		}
		out[i] = row
	}
	return out
}
