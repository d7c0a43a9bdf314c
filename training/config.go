// Package training drives acoustic model training over the datasets
// package: run configuration, run directories, learning rate decay, metric
// history with plots, and the step/epoch loop around an external Model.
package training

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/Noofbiz/speechBatch/datasets"
	"gopkg.in/yaml.v3"
)

// Config is the "param" mapping of a run configuration file.
type Config struct {
	Corpus        corpus.Name `yaml:"corpus"`
	Model         string      `yaml:"model"`
	LabelType     string      `yaml:"label_type"`
	LabelTypeSub  string      `yaml:"label_type_sub,omitempty"`
	LabelDir      string      `yaml:"label_dir,omitempty"`
	TrainDataSize string      `yaml:"train_data_size,omitempty"`
	DataRoot      string      `yaml:"data_root"`

	BatchSize     int  `yaml:"batch_size"`
	NumGPU        int  `yaml:"num_gpu"`
	NumStack      int  `yaml:"num_stack"`
	NumSkip       int  `yaml:"num_skip"`
	Splice        int  `yaml:"splice"`
	SortUtt       bool `yaml:"sort_utt"`
	SortStopEpoch int  `yaml:"sort_stop_epoch"`
	SortaGrad     bool `yaml:"sorta_grad"`

	NumEpoch          int     `yaml:"num_epoch"`
	LearningRate      float64 `yaml:"learning_rate"`
	DecayStartEpoch   int     `yaml:"decay_start_epoch"`
	DecayRate         float64 `yaml:"decay_rate"`
	DecayPatientEpoch int     `yaml:"decay_patient_epoch"`
	Optimizer         string  `yaml:"optimizer"`
	EvalEvery         int     `yaml:"eval_every"`

	NumUnit       int     `yaml:"num_unit"`
	NumLayer      int     `yaml:"num_layer"`
	InputSize     int     `yaml:"input_size"`
	NumProj       int     `yaml:"num_proj"`
	BottleneckDim int     `yaml:"bottleneck_dim"`
	WeightDecay   float64 `yaml:"weight_decay"`
}

type configFile struct {
	Param Config `yaml:"param"`
}

// LoadConfig reads a run configuration, applies defaults and validates the
// corpus fields. Corpus errors wrap corpus.ErrConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg := f.Param.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes c as a run configuration file.
func (c Config) Save(path string) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(configFile{Param: c}); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (c Config) withDefaults() Config {
	if c.LabelDir == "" {
		c.LabelDir = corpus.LabelDirCTC
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.NumGPU <= 0 {
		c.NumGPU = 1
	}
	if c.NumStack <= 0 {
		c.NumStack = 1
	}
	if c.NumSkip <= 0 {
		c.NumSkip = 1
	}
	if c.Splice == 0 {
		c.Splice = 1
	}
	if c.NumEpoch <= 0 {
		c.NumEpoch = 20
	}
	if c.LearningRate == 0 {
		c.LearningRate = 1e-3
	}
	if c.DecayRate == 0 {
		c.DecayRate = 1
	}
	if c.Optimizer == "" {
		c.Optimizer = "adam"
	}
	if c.EvalEvery <= 0 {
		c.EvalEvery = 200
	}
	return c
}

// Validate checks the splice window and the corpus fields of the train and
// dev splits.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Splice < 1 || c.Splice%2 == 0 {
		return fmt.Errorf("%w: splice must be a positive odd number of frames, got %d", corpus.ErrConfig, c.Splice)
	}
	for _, split := range []string{c.TrainSplit(), c.DevSplit()} {
		if err := c.Layout(split).Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LabelTypes returns the label streams: the main label type and, for
// multitask models, the sub label type.
func (c Config) LabelTypes() []string {
	if c.LabelTypeSub == "" {
		return []string{c.LabelType}
	}
	return []string{c.LabelType, c.LabelTypeSub}
}

// TrainSplit is the data split trained on.
func (c Config) TrainSplit() string {
	if c.Corpus == corpus.Librispeech {
		return c.TrainDataSize
	}
	return "train"
}

// DevSplit is the data split evaluated during training. Librispeech runs on
// the clean subsets evaluate on dev_clean, the others on dev_other.
func (c Config) DevSplit() string {
	if c.Corpus != corpus.Librispeech {
		return "dev"
	}
	switch c.TrainDataSize {
	case "train_clean100", "train_clean360":
		return "dev_clean"
	}
	return "dev_other"
}

// Layout locates split of the configured corpus.
func (c Config) Layout(split string) corpus.Layout {
	return corpus.Layout{
		Root:        c.DataRoot,
		Corpus:      c.Corpus,
		Split:       split,
		TrainSize:   c.TrainDataSize,
		LabelTypes:  c.LabelTypes(),
		LabelDir:    c.LabelDir,
		SpeakerDirs: c.Corpus == corpus.CSJ,
	}
}

// DatasetConfig returns the batching configuration of the train dataset, or
// of an evaluation dataset when training is false. Evaluation datasets are
// never sorted.
func (c Config) DatasetConfig(split string, training bool) datasets.Config {
	return datasets.Config{
		Name:          split,
		BatchSize:     c.BatchSize,
		NumDevices:    c.NumGPU,
		NumStack:      c.NumStack,
		NumSkip:       c.NumSkip,
		Splice:        c.Splice,
		SortUtt:       training && c.SortUtt,
		SortStopEpoch: c.SortStopEpoch,
		SortaGrad:     training && c.SortaGrad,
		Training:      training,
	}
}

// OpenDatasets opens the lazy train and dev datasets of the run.
func OpenDatasets(c Config, reader corpus.Reader) (train, dev *datasets.Dataset, err error) {
	split := c.TrainSplit()
	train, err = datasets.New(c.Layout(split), reader, c.DatasetConfig(split, true))
	if err != nil {
		return nil, nil, err
	}
	split = c.DevSplit()
	dev, err = datasets.New(c.Layout(split), reader, c.DatasetConfig(split, false))
	if err != nil {
		return nil, nil, err
	}
	return train, dev, nil
}

// numClasses lists the output classes per corpus and label type, blank
// excluded.
var numClasses = map[corpus.Name]map[string]int{
	corpus.TIMIT: {
		"phone61":                  61,
		"phone48":                  48,
		"phone39":                  39,
		"character":                28,
		"character_capital_divide": 72,
	},
	corpus.CSJ: {
		"kanji": 3386,
		"kana":  147,
		"phone": 38,
	},
	corpus.Librispeech: {
		"character":                28,
		"character_capital_divide": 77,
	},
}

// librispeechWords is the word vocabulary size per train size.
var librispeechWords = map[string]int{
	"train_clean100": 7213,
	"train_clean360": 16287,
	"train_other500": 18669,
	"train_all":      26642,
}

// NumClasses returns the number of output classes of labelType, blank
// excluded.
func NumClasses(c Config, labelType string) (int, error) {
	if c.Corpus == corpus.Librispeech && labelType == "word" {
		if n, ok := librispeechWords[c.TrainDataSize]; ok {
			return n, nil
		}
		return 0, fmt.Errorf("%w: no word vocabulary for train size %q", corpus.ErrConfig, c.TrainDataSize)
	}
	if n, ok := numClasses[c.Corpus][labelType]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w: unknown number of classes for %s %s", corpus.ErrConfig, c.Corpus, labelType)
}

// ModelName names a run after its hyperparameters.
func ModelName(c Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s_%d_%d_%s_lr%s", c.Model, c.NumUnit, c.NumLayer, c.Optimizer, formatFloat(c.LearningRate))
	if c.BottleneckDim != 0 {
		fmt.Fprintf(&b, "_bottleneck%d", c.BottleneckDim)
	}
	if c.NumProj != 0 {
		fmt.Fprintf(&b, "_proj%d", c.NumProj)
	}
	if c.NumStack != 1 {
		fmt.Fprintf(&b, "_stack%d", c.NumStack)
	}
	if c.WeightDecay != 0 {
		fmt.Fprintf(&b, "_weightdecay%s", formatFloat(c.WeightDecay))
	}
	if c.NumGPU >= 2 {
		fmt.Fprintf(&b, "_gpu%d", c.NumGPU)
	}
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
