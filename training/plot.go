package training

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var (
	trainColor = color.RGBA{R: 20, G: 80, B: 200, A: 255}
	devColor   = color.RGBA{R: 230, G: 120, B: 20, A: 255}
)

// PlotLoss draws the train and dev loss curves of h into dir/loss.png.
func PlotLoss(h *History, dir string) error {
	return plotCurves(filepath.Join(dir, "loss.png"), "Loss", "loss", h.Steps, h.LossTrain, h.LossDev)
}

// PlotLER draws the train and dev label error rate curves of h into
// dir/ler.png.
func PlotLER(h *History, dir, labelType string) error {
	name := MetricName(labelType)
	return plotCurves(filepath.Join(dir, "ler.png"), name+" ("+labelType+")", name, h.Steps, h.LERTrain, h.LERDev)
}

// MetricName names the label error rate of labelType.
func MetricName(labelType string) string {
	switch {
	case labelType == "word":
		return "WER"
	case strings.HasPrefix(labelType, "phone"):
		return "PER"
	case labelType == "character", labelType == "character_capital_divide",
		labelType == "kanji", labelType == "kana":
		return "CER"
	}
	return "LER"
}

func plotCurves(path, title, yLabel string, steps []int, train, dev []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "step"
	p.Y.Label.Text = yLabel

	trainXYs, devXYs := make(plotter.XYs, len(steps)), make(plotter.XYs, len(steps))
	for i, s := range steps {
		trainXYs[i] = plotter.XY{X: float64(s), Y: train[i]}
		devXYs[i] = plotter.XY{X: float64(s), Y: dev[i]}
	}

	for _, c := range []struct {
		name string
		xys  plotter.XYs
		col  color.Color
	}{
		{"train", trainXYs, trainColor},
		{"dev", devXYs, devColor},
	} {
		line, err := plotter.NewLine(c.xys)
		if err != nil {
			return err
		}
		line.Color = c.col
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(c.name, line)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	xmin, xmax, ymin, ymax := autoRange(append(trainXYs, devXYs...))
	p.X.Min = xmin
	p.X.Max = xmax
	p.Y.Min = ymin
	p.Y.Max = ymax

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xys plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xys) == 0 {
		return 0, 1, 0, 1
	}
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, p := range xys {
		xmin, xmax = min(xmin, p.X), max(xmax, p.X)
		ymin, ymax = min(ymin, p.Y), max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}
