// Package corpus describes the on-disk layout of the preprocessed speech
// corpora (TIMIT, CSJ and Librispeech) and builds the utterance index the
// datasets package batches from.
//
// A corpus split is stored as one feature array and one label array per
// utterance plus a frame_num.json file mapping every utterance name to its
// number of feature frames:
//
//	<root>/inputs[/<train size>]/<split>/frame_num.json
//	<root>/inputs[/<train size>]/<split>[/<speaker>]/<name>.npy
//	<root>/labels/<label dir>[/<train size>]/<label type>/<split>[/<speaker>]/<name>.npy
package corpus

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// ErrConfig is wrapped by every error caused by an unrecognised corpus,
// data split, train size or label type.
var ErrConfig = errors.New("corpus: invalid configuration")

// Name identifies a corpus.
type Name string

const (
	TIMIT       Name = "timit"
	CSJ         Name = "csj"
	Librispeech Name = "librispeech"
)

// Label directories under <root>/labels.
const (
	LabelDirCTC       = "ctc"
	LabelDirAttention = "attention"
	LabelDirCTCDivide = "ctc_divide"
)

// FrameNumFile is the name of the frame count mapping stored next to the
// inputs of every split.
const FrameNumFile = "frame_num.json"

type corpusInfo struct {
	splits     []string
	trainSizes []string
	labelTypes []string
}

var corpora = map[Name]corpusInfo{
	TIMIT: {
		splits:     []string{"train", "dev", "test"},
		labelTypes: []string{"phone39", "phone48", "phone61", "character", "character_capital_divide"},
	},
	CSJ: {
		splits:     []string{"train", "dev", "eval1", "eval2", "eval3"},
		trainSizes: []string{"default", "large"},
		labelTypes: []string{"kanji", "kana", "phone", "character"},
	},
	Librispeech: {
		splits: []string{
			"train_clean100", "train_clean360", "train_other500", "train_all",
			"dev_clean", "dev_other", "test_clean", "test_other",
		},
		trainSizes: []string{"train_clean100", "train_clean360", "train_other500", "train_all"},
		labelTypes: []string{"character", "character_capital_divide", "word"},
	},
}

// Splits returns the data splits recognised for corpus c.
func Splits(c Name) []string { return slices.Clone(corpora[c].splits) }

// LabelTypes returns the label types recognised for corpus c.
func LabelTypes(c Name) []string { return slices.Clone(corpora[c].labelTypes) }

// TrainSizes returns the train-set size variants of corpus c. TIMIT has none.
func TrainSizes(c Name) []string { return slices.Clone(corpora[c].trainSizes) }

// Layout locates one split of a corpus on disk.
type Layout struct {
	// Root is the directory holding the inputs/ and labels/ trees.
	Root string

	Corpus Name

	// Split is the data split, e.g. "train" or "test_clean".
	Split string

	// TrainSize selects the train-set size variant. Required for corpora
	// that have variants and must be empty for TIMIT.
	TrainSize string

	// LabelTypes lists one label type per label stream. Multitask models
	// read two streams, e.g. {"kanji", "kana"}.
	LabelTypes []string

	// LabelDir is the directory under labels/. Defaults to LabelDirCTC.
	LabelDir string

	// SpeakerDirs stores utterances under a per-speaker directory named
	// after the utterance name up to its first underscore (CSJ layout).
	SpeakerDirs bool
}

// Validate checks every enumerated field against the corpus tables. It does
// no I/O. All returned errors wrap ErrConfig.
func (l Layout) Validate() error {
	s, ok := corpora[l.Corpus]
	if !ok {
		return fmt.Errorf("%w: unknown corpus %q", ErrConfig, l.Corpus)
	}
	if !slices.Contains(s.splits, l.Split) {
		return fmt.Errorf("%w: data split of %s must be one of %s, got %q",
			ErrConfig, l.Corpus, strings.Join(s.splits, ", "), l.Split)
	}
	switch {
	case len(s.trainSizes) == 0 && l.TrainSize != "":
		return fmt.Errorf("%w: %s has no train size variants, got %q", ErrConfig, l.Corpus, l.TrainSize)
	case len(s.trainSizes) > 0 && !slices.Contains(s.trainSizes, l.TrainSize):
		return fmt.Errorf("%w: train size of %s must be one of %s, got %q",
			ErrConfig, l.Corpus, strings.Join(s.trainSizes, ", "), l.TrainSize)
	}
	if len(l.LabelTypes) == 0 {
		return fmt.Errorf("%w: at least one label type is required", ErrConfig)
	}
	for _, lt := range l.LabelTypes {
		if !slices.Contains(s.labelTypes, lt) {
			return fmt.Errorf("%w: label type of %s must be one of %s, got %q",
				ErrConfig, l.Corpus, strings.Join(s.labelTypes, ", "), lt)
		}
	}
	switch l.labelDir() {
	case LabelDirCTC, LabelDirAttention, LabelDirCTCDivide:
	default:
		return fmt.Errorf("%w: unknown label dir %q", ErrConfig, l.LabelDir)
	}
	return nil
}

func (l Layout) labelDir() string {
	if l.LabelDir == "" {
		return LabelDirCTC
	}
	return l.LabelDir
}

// InputDir is the directory holding the feature arrays and frame_num.json.
func (l Layout) InputDir() string {
	return filepath.Join(l.Root, "inputs", l.TrainSize, l.Split)
}

// LabelDirFor is the directory holding the label arrays of labelType.
func (l Layout) LabelDirFor(labelType string) string {
	return filepath.Join(l.Root, "labels", l.labelDir(), l.TrainSize, labelType, l.Split)
}

// FrameNumPath is the path of the frame count mapping.
func (l Layout) FrameNumPath() string {
	return filepath.Join(l.InputDir(), FrameNumFile)
}

// Paths returns the feature path and the label paths (one per label type)
// of utterance name.
func (l Layout) Paths(name string) (input string, labels []string) {
	file := name + ".npy"
	sub := ""
	if l.SpeakerDirs {
		sub = Speaker(name)
	}
	input = filepath.Join(l.InputDir(), sub, file)
	labels = make([]string, len(l.LabelTypes))
	for i, lt := range l.LabelTypes {
		labels[i] = filepath.Join(l.LabelDirFor(lt), sub, file)
	}
	return input, labels
}

// Speaker returns the speaker part of an utterance name: everything before
// the first underscore, or the whole name.
func Speaker(name string) string {
	if i := strings.IndexByte(name, '_'); i >= 0 {
		return name[:i]
	}
	return name
}

// UtteranceName strips the directory and extension from a feature or label
// path.
func UtteranceName(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}
