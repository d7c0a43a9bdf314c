package training

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/Noofbiz/speechBatch/datasets"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const librispeechYAML = `param:
  corpus: librispeech
  model: blstm
  label_type: character
  train_data_size: train_clean100
  data_root: /data/librispeech
  batch_size: 16
  num_gpu: 2
  num_stack: 3
  num_skip: 3
  sort_utt: true
  sort_stop_epoch: 3
  num_epoch: 5
  learning_rate: 0.001
  decay_start_epoch: 2
  decay_rate: 0.9
  decay_patient_epoch: 1
  optimizer: adam
  num_unit: 256
  num_layer: 5
  input_size: 123
  num_proj: 0
  bottleneck_dim: 0
  weight_decay: 0
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(writeFile(t, dir, "config.yml", librispeechYAML))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	want := Config{
		Corpus: corpus.Librispeech, Model: "blstm", LabelType: "character",
		LabelDir: corpus.LabelDirCTC, TrainDataSize: "train_clean100", DataRoot: "/data/librispeech",
		BatchSize: 16, NumGPU: 2, NumStack: 3, NumSkip: 3, Splice: 1, SortUtt: true, SortStopEpoch: 3,
		NumEpoch: 5, LearningRate: 0.001, DecayStartEpoch: 2, DecayRate: 0.9, DecayPatientEpoch: 1,
		Optimizer: "adam", EvalEvery: 200, NumUnit: 256, NumLayer: 5, InputSize: 123,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("LoadConfig (-want +got):\n%s", diff)
	}
	if cfg.TrainSplit() != "train_clean100" || cfg.DevSplit() != "dev_clean" {
		t.Fatalf("splits = %s, %s", cfg.TrainSplit(), cfg.DevSplit())
	}

	// Save then load gives the same configuration.
	path := filepath.Join(dir, "saved.yml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig of saved config failed: %v", err)
	}
	if diff := cmp.Diff(cfg, again); diff != "" {
		t.Fatalf("saved config differs (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name, yaml string
		want       error
	}{
		{"unknown corpus", "param:\n  corpus: wsj\n  model: blstm\n  label_type: character\n", corpus.ErrConfig},
		{"bad label", "param:\n  corpus: timit\n  model: blstm\n  label_type: word\n", corpus.ErrConfig},
		{"bad size", "param:\n  corpus: csj\n  model: blstm\n  label_type: kana\n  train_data_size: huge\n", corpus.ErrConfig},
	} {
		_, err := LoadConfig(writeFile(t, dir, "c.yml", tc.yaml))
		if diff := cmp.Diff(tc.want, err, cmpopts.EquateErrors()); diff != "" {
			t.Errorf("%s: error (-want +got):\n%s", tc.name, diff)
		}
	}

	if _, err := LoadConfig(writeFile(t, dir, "c.yml", "param:\n  corpus: timit\n  label_type: phone39\n")); err == nil {
		t.Errorf("missing model should fail")
	}
	if _, err := LoadConfig(writeFile(t, dir, "c.yml", "param: [\n")); err == nil {
		t.Errorf("malformed yaml should fail")
	}
}

func TestLoadConfig_Splice(t *testing.T) {
	dir := t.TempDir()
	const base = "param:\n  corpus: timit\n  model: blstm\n  label_type: phone61\n  input_size: 2\n"
	for _, tc := range []struct {
		splice    string
		wantInput int
	}{
		{"", 2},
		{"  splice: 1\n", 2},
		{"  splice: 3\n", 6},
		{"  splice: 5\n", 10},
	} {
		cfg, err := LoadConfig(writeFile(t, dir, "c.yml", base+tc.splice))
		if err != nil {
			t.Fatalf("%q: LoadConfig failed: %v", tc.splice, err)
		}
		// memReader features are 2 wide, so the model input is input_size*splice.
		ds := memDataset(t, 3, cfg.DatasetConfig(cfg.TrainSplit(), true))
		if got := ds.InputSize(); got != tc.wantInput || got != cfg.InputSize*cfg.Splice {
			t.Errorf("%q: InputSize = %d, want %d", tc.splice, got, tc.wantInput)
		}
	}

	for _, bad := range []string{"  splice: 2\n", "  splice: -1\n", "  splice: -3\n"} {
		_, err := LoadConfig(writeFile(t, dir, "c.yml", base+bad))
		if diff := cmp.Diff(corpus.ErrConfig, err, cmpopts.EquateErrors()); diff != "" {
			t.Errorf("%q: error (-want +got):\n%s", bad, diff)
		}
	}
}

func TestSplitsAndLayout(t *testing.T) {
	csj := Config{Corpus: corpus.CSJ, LabelType: "kanji", LabelTypeSub: "kana", TrainDataSize: "large", LabelDir: "ctc"}
	if csj.TrainSplit() != "train" || csj.DevSplit() != "dev" {
		t.Fatalf("csj splits = %s, %s", csj.TrainSplit(), csj.DevSplit())
	}
	l := csj.Layout("dev")
	if !l.SpeakerDirs || len(l.LabelTypes) != 2 || l.TrainSize != "large" {
		t.Fatalf("unexpected layout: %+v", l)
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	other := Config{Corpus: corpus.Librispeech, TrainDataSize: "train_other500"}
	if other.DevSplit() != "dev_other" {
		t.Fatalf("dev split = %s, want dev_other", other.DevSplit())
	}

	dc := csj.withDefaults().DatasetConfig("dev", false)
	if dc.SortUtt || dc.SortaGrad || dc.Training || dc.Name != "dev" || dc.NumDevices != 1 {
		t.Fatalf("unexpected eval dataset config: %+v", dc)
	}
}

func TestNumClasses(t *testing.T) {
	for _, tc := range []struct {
		corpus    corpus.Name
		size      string
		labelType string
		want      int
	}{
		{corpus.Librispeech, "train_clean100", "character", 28},
		{corpus.Librispeech, "train_all", "character_capital_divide", 77},
		{corpus.Librispeech, "train_clean100", "word", 7213},
		{corpus.Librispeech, "train_clean360", "word", 16287},
		{corpus.Librispeech, "train_other500", "word", 18669},
		{corpus.Librispeech, "train_all", "word", 26642},
		{corpus.CSJ, "default", "kanji", 3386},
		{corpus.CSJ, "default", "kana", 147},
		{corpus.CSJ, "large", "phone", 38},
		{corpus.TIMIT, "", "phone61", 61},
	} {
		got, err := NumClasses(Config{Corpus: tc.corpus, TrainDataSize: tc.size}, tc.labelType)
		if err != nil || got != tc.want {
			t.Errorf("NumClasses(%s, %s, %s) = %d, %v; want %d", tc.corpus, tc.size, tc.labelType, got, err, tc.want)
		}
	}
	if _, err := NumClasses(Config{Corpus: corpus.TIMIT}, "word"); !errors.Is(err, corpus.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestModelName(t *testing.T) {
	base := Config{Model: "blstm", NumUnit: 256, NumLayer: 5, Optimizer: "adam", LearningRate: 1e-3, NumStack: 1, NumGPU: 1}
	for _, tc := range []struct {
		name string
		mod  func(*Config)
		want string
	}{
		{"base", func(*Config) {}, "blstm_256_5_adam_lr0.001"},
		{"all", func(c *Config) {
			c.BottleneckDim = 128
			c.NumProj = 64
			c.NumStack = 3
			c.WeightDecay = 1e-6
			c.NumGPU = 4
		}, "blstm_256_5_adam_lr0.001_bottleneck128_proj64_stack3_weightdecay1e-06_gpu4"},
		{"small lr", func(c *Config) { c.LearningRate = 0.0001 }, "blstm_256_5_adam_lr0.0001"},
	} {
		c := base
		tc.mod(&c)
		if got := ModelName(c); got != tc.want {
			t.Errorf("%s: ModelName = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestPrepareRunDir(t *testing.T) {
	root := t.TempDir()
	configPath := writeFile(t, t.TempDir(), "config.yml", librispeechYAML)
	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}

	dir, err := PrepareRunDir(root, cfg, configPath)
	if err != nil {
		t.Fatalf("PrepareRunDir failed: %v", err)
	}
	if want := filepath.Join(root, "ctc", "character", "train_clean100", ModelName(cfg)); dir != want {
		t.Fatalf("dir = %s, want %s", dir, want)
	}
	saved, err := os.ReadFile(filepath.Join(dir, ConfigFile))
	if err != nil || string(saved) != librispeechYAML {
		t.Fatalf("config copy: %q, %v", saved, err)
	}

	// An unfinished run is wiped.
	stale := writeFile(t, dir, "model.ckpt-1", "stale")
	if _, err := PrepareRunDir(root, cfg, configPath); err != nil {
		t.Fatalf("PrepareRunDir over unfinished run failed: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("stale checkpoint survived: %v", err)
	}

	// A finished run is kept.
	if err := MarkComplete(dir); err != nil {
		t.Fatal(err)
	}
	if !IsComplete(dir) {
		t.Fatalf("IsComplete = false after MarkComplete")
	}
	if _, err := PrepareRunDir(root, cfg, configPath); !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}
	if !IsComplete(dir) {
		t.Fatalf("finished run was wiped")
	}
}

func TestLRController(t *testing.T) {
	c := &LRController{InitLR: 1, DecayStartEpoch: 2, DecayRate: 0.5, DecayPatientEpoch: 1, LowerBetter: true}
	lr := c.InitLR
	for _, tc := range []struct {
		epoch  int
		value  float64
		wantLR float64
	}{
		{1, 0.5, 1},    // before decay start, best tracked
		{2, 0.6, 1},    // no improvement, patience 0 -> 1
		{3, 0.6, 0.5},  // patience exhausted, decay
		{4, 0.4, 0.5},  // improvement
		{5, 0.45, 0.5}, // patience 0 -> 1
		{6, 0.45, 0.25},
	} {
		lr = c.DecayLR(lr, tc.epoch, tc.value)
		if lr != tc.wantLR {
			t.Fatalf("epoch %d: lr = %v, want %v", tc.epoch, lr, tc.wantLR)
		}
	}

	higher := &LRController{DecayStartEpoch: 1, DecayRate: 0.1, LowerBetter: false}
	if got := higher.DecayLR(1, 1, 0.9); got != 1 {
		t.Fatalf("first value should be an improvement, got lr %v", got)
	}
	if got := higher.DecayLR(1, 2, 0.8); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("lower accuracy with zero patience should decay, got lr %v", got)
	}
}

func TestHistoryCSVRoundTrip(t *testing.T) {
	h := &History{}
	h.Add(200, 1.5, 1.7, 0.4, 0.45)
	h.Add(400, 1.25, 1.5, 0.3, 0.35)
	path := filepath.Join(t.TempDir(), HistoryFile)
	if err := h.WriteCSV(path); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}
	got, err := ReadHistoryCSV(path)
	if err != nil {
		t.Fatalf("ReadHistoryCSV failed: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("history (-want +got):\n%s", diff)
	}
}

func TestPlots(t *testing.T) {
	dir := t.TempDir()
	h := &History{}
	for i := 1; i <= 5; i++ {
		h.Add(i*100, 3/float64(i), 3.5/float64(i), 0.9/float64(i), 1/float64(i))
	}
	if err := PlotLoss(h, dir); err != nil {
		t.Fatalf("PlotLoss failed: %v", err)
	}
	if err := PlotLER(&History{}, dir, "character"); err != nil {
		t.Fatalf("PlotLER on empty history failed: %v", err)
	}
	for _, name := range []string{"loss.png", "ler.png"} {
		if fi, err := os.Stat(filepath.Join(dir, name)); err != nil || fi.Size() == 0 {
			t.Fatalf("%s not written: %v", name, err)
		}
	}
	if MetricName("word") != "WER" || MetricName("phone39") != "PER" || MetricName("kana") != "CER" {
		t.Fatalf("unexpected metric names")
	}
}

// memReader serves constant utterances: utterance i has 4+i frames.
type memReader struct{}

func (memReader) ReadFeatures(path string) ([][]float32, error) {
	var i int
	if _, err := fmt.Sscanf(filepath.Base(path), "in%d", &i); err != nil {
		return nil, err
	}
	out := make([][]float32, 4+i)
	for t := range out {
		out[t] = []float32{float32(i), 1}
	}
	return out, nil
}

func (memReader) ReadLabels(string) ([]int32, error) { return []int32{1, 2, 3}, nil }

func memDataset(t *testing.T, n int, cfg datasets.Config) *datasets.Dataset {
	t.Helper()
	frameNums := make(map[string]int, n)
	for i := range n {
		frameNums[fmt.Sprintf("%d", i)] = 4 + i
	}
	x := corpus.BuildIndex(frameNums, func(name string) (string, []string) {
		return "in" + name, []string{"lab" + name}
	})
	cfg.Seed = 1
	ds, err := datasets.New(corpus.StaticIndex{Index: x}, memReader{}, cfg)
	if err != nil {
		t.Fatalf("datasets.New failed: %v", err)
	}
	return ds
}

type fakeModel struct {
	steps      int
	lrs        []float64
	devices    []int
	evaluated  int
	saved      []int
	ler        float64
	failAtStep int
}

func (m *fakeModel) Step(_ context.Context, batches []*datasets.Batch, lr float64) (float64, error) {
	m.steps++
	if m.steps == m.failAtStep {
		return 0, errors.New("diverged")
	}
	m.lrs = append(m.lrs, lr)
	m.devices = append(m.devices, len(batches))
	return 1, nil
}

func (m *fakeModel) Evaluate(_ context.Context, batches []*datasets.Batch) (float64, float64, error) {
	m.evaluated++
	return 2, m.ler, nil
}

func (m *fakeModel) Save(_ context.Context, dir string, epoch int) (string, error) {
	m.saved = append(m.saved, epoch)
	path := filepath.Join(dir, fmt.Sprintf("model.ckpt-%d", epoch))
	return path, os.WriteFile(path, nil, 0o644)
}

func TestTrainerRun(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Corpus: corpus.TIMIT, LabelType: "phone39", NumEpoch: 2, EvalEvery: 2,
		LearningRate: 0.1, DecayRate: 0.5, DecayStartEpoch: 1, DecayPatientEpoch: 0,
	}
	m := &fakeModel{ler: 0.5}
	tr := &Trainer{
		Model:  m,
		Train:  memDataset(t, 5, datasets.Config{BatchSize: 2, SortUtt: true, Training: true}),
		Dev:    memDataset(t, 3, datasets.Config{BatchSize: 2}),
		Config: cfg,
		Dir:    dir,
	}
	res, err := tr.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// 5 utterances in batches of 2 is 3 steps per epoch.
	if res.Steps != 6 || res.Epochs != 2 || m.steps != 6 {
		t.Fatalf("steps = %d (model %d), epochs = %d", res.Steps, m.steps, res.Epochs)
	}
	if diff := cmp.Diff([]int{1, 2}, m.saved); diff != "" {
		t.Fatalf("saved epochs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 4, 6}, res.History.Steps); diff != "" {
		t.Fatalf("history steps (-want +got):\n%s", diff)
	}
	// The dev ler never improves after epoch 1, so epoch 2 decays the rate.
	if diff := cmp.Diff([]float64{0.1, 0.1, 0.1, 0.1, 0.1, 0.1}, m.lrs); diff != "" {
		t.Fatalf("learning rates (-want +got):\n%s", diff)
	}
	if res.FinalLR != 0.05 || res.BestDevLER != 0.5 {
		t.Fatalf("final lr %v, best %v", res.FinalLR, res.BestDevLER)
	}
	for _, name := range []string{CompleteFile, HistoryFile, "loss.png", "ler.png", "model.ckpt-2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("%s missing: %v", name, err)
		}
	}
	if tr.Train.Epoch() != 2 {
		t.Fatalf("train epoch = %d, want 2", tr.Train.Epoch())
	}
}

func TestTrainerRun_MultiDevice(t *testing.T) {
	m := &fakeModel{ler: 0.5}
	tr := &Trainer{
		Model:  m,
		Train:  memDataset(t, 8, datasets.Config{BatchSize: 2, NumDevices: 2}),
		Dev:    memDataset(t, 4, datasets.Config{BatchSize: 2, NumDevices: 2}),
		Config: Config{LabelType: "character", NumEpoch: 1},
		Dir:    t.TempDir(),
	}
	if _, err := tr.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if diff := cmp.Diff([]int{2, 2}, m.devices); diff != "" {
		t.Fatalf("batches per step (-want +got):\n%s", diff)
	}
}

func TestTrainerRun_Errors(t *testing.T) {
	newTrainer := func(m *fakeModel) *Trainer {
		return &Trainer{
			Model:  m,
			Train:  memDataset(t, 4, datasets.Config{BatchSize: 1}),
			Dev:    memDataset(t, 2, datasets.Config{BatchSize: 1}),
			Config: Config{LabelType: "character", NumEpoch: 3},
			Dir:    t.TempDir(),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := newTrainer(&fakeModel{})
	if _, err := tr.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsComplete(tr.Dir) {
		t.Fatalf("cancelled run was marked complete")
	}

	tr = newTrainer(&fakeModel{failAtStep: 3})
	if _, err := tr.Run(context.Background()); err == nil {
		t.Fatalf("expected the step error")
	}
	if IsComplete(tr.Dir) {
		t.Fatalf("failed run was marked complete")
	}

	if _, err := (&Trainer{}).Run(context.Background()); err == nil {
		t.Fatalf("expected an error without datasets")
	}
}
