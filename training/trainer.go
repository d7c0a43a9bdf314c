package training

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Noofbiz/speechBatch/datasets"
	"k8s.io/klog/v2"
)

// Model is the network being trained. Batches hold one entry per device.
type Model interface {
	// Step runs one parameter update and returns the training loss.
	Step(ctx context.Context, batches []*datasets.Batch, lr float64) (float64, error)
	// Evaluate returns the loss and label error rate without updating
	// parameters.
	Evaluate(ctx context.Context, batches []*datasets.Batch) (loss, ler float64, err error)
	// Save writes a checkpoint for epoch into dir and returns its path.
	Save(ctx context.Context, dir string, epoch int) (string, error)
}

// Trainer runs the training loop of one run directory.
type Trainer struct {
	Model  Model
	Train  *datasets.Dataset
	Dev    *datasets.Dataset
	Config Config
	// Dir is the run directory, usually from PrepareRunDir.
	Dir string
}

// Result summarises a finished run.
type Result struct {
	Steps      int
	Epochs     int
	BestDevLER float64
	FinalLR    float64
	History    *History
}

// Run trains until Config.NumEpoch epochs have completed, then marks the run
// directory complete.
//
// Every Config.EvalEvery steps the current train batch and one dev batch are
// evaluated and recorded in the history. At the end of every epoch a
// checkpoint is saved, the history is written and plotted, the whole dev set
// is evaluated and the learning rate is decayed. Cancelling ctx stops the
// loop between steps.
func (t *Trainer) Run(ctx context.Context) (*Result, error) {
	if t.Model == nil || t.Train == nil || t.Dev == nil {
		return nil, errors.New("trainer needs a model, a train and a dev dataset")
	}
	cfg := t.Config.withDefaults()
	metric := MetricName(cfg.LabelType)
	lrc := NewLRController(cfg)
	res := &Result{BestDevLER: 1, FinalLR: lrc.InitLR, History: &History{}}

	lr := lrc.InitLR
	epoch := 1
	startTrain := time.Now()
	startEpoch := time.Now()
	startStep := time.Now()
	for step := 0; ; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batches, nextEpoch, err := t.Train.NextSplit()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step+1, err)
		}
		if _, err := t.Model.Step(ctx, batches, lr); err != nil {
			return nil, fmt.Errorf("step %d: %w", step+1, err)
		}
		res.Steps = step + 1

		if (step+1)%cfg.EvalEvery == 0 {
			devBatches, _, err := t.Dev.NextSplit()
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", step+1, err)
			}
			lossTrain, lerTrain, err := t.Model.Evaluate(ctx, batches)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", step+1, err)
			}
			lossDev, lerDev, err := t.Model.Evaluate(ctx, devBatches)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", step+1, err)
			}
			res.History.Add(step+1, lossTrain, lossDev, lerTrain, lerDev)
			klog.Infof("Step %d: loss = %.3f (%.3f) / ler = %.4f (%.4f) / lr = %.5f (%.3f min)",
				step+1, lossTrain, lossDev, lerTrain, lerDev, lr, time.Since(startStep).Minutes())
			startStep = time.Now()
		}

		if !nextEpoch {
			continue
		}
		klog.Infof("-----EPOCH:%d (%.3f min)-----", epoch, time.Since(startEpoch).Minutes())
		res.Epochs = epoch

		path, err := t.Model.Save(ctx, t.Dir, epoch)
		if err != nil {
			return nil, fmt.Errorf("failed to save epoch %d: %w", epoch, err)
		}
		klog.Infof("Model saved in file: %s", path)

		if err := t.writeHistory(res.History, cfg.LabelType); err != nil {
			return nil, err
		}

		startEval := time.Now()
		klog.Info("=== Dev Data Evaluation ===")
		lerDev, err := t.evaluateDev(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate epoch %d: %w", epoch, err)
		}
		klog.Infof("  %s: %f %%", metric, lerDev*100)
		if lerDev < res.BestDevLER {
			res.BestDevLER = lerDev
			klog.Infof("■■■ ↑Best Score (%s)↑ ■■■", metric)
		}
		klog.Infof("Evaluation time: %.3f min", time.Since(startEval).Minutes())

		lr = lrc.DecayLR(lr, epoch, lerDev)
		res.FinalLR = lr
		if epoch == cfg.NumEpoch {
			break
		}
		epoch++
		startEpoch = time.Now()
	}
	klog.Infof("Total time: %.3f hour", time.Since(startTrain).Hours())

	if err := MarkComplete(t.Dir); err != nil {
		return nil, fmt.Errorf("failed to mark run complete: %w", err)
	}
	return res, nil
}

func (t *Trainer) writeHistory(h *History, labelType string) error {
	if err := h.WriteCSV(filepath.Join(t.Dir, HistoryFile)); err != nil {
		return err
	}
	if err := PlotLoss(h, t.Dir); err != nil {
		return fmt.Errorf("failed to plot loss: %w", err)
	}
	if err := PlotLER(h, t.Dir, labelType); err != nil {
		return fmt.Errorf("failed to plot ler: %w", err)
	}
	return nil
}

// evaluateDev runs one full pass over the dev set and returns the label
// error rate averaged over utterances.
func (t *Trainer) evaluateDev(ctx context.Context) (float64, error) {
	t.Dev.Reset()
	var sum float64
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batches, nextEpoch, err := t.Dev.NextSplit()
		if err != nil {
			return 0, err
		}
		size := 0
		for _, b := range batches {
			size += b.Size()
		}
		_, ler, err := t.Model.Evaluate(ctx, batches)
		if err != nil {
			return 0, err
		}
		sum += ler * float64(size)
		n += size
		if nextEpoch {
			break
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}
