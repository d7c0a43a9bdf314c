package training

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// HistoryFile is the metric history of a run directory.
const HistoryFile = "history.csv"

var historyHeader = []string{"step", "loss_train", "loss_dev", "ler_train", "ler_dev"}

// History holds the periodic train/dev metrics of a run.
type History struct {
	Steps     []int
	LossTrain []float64
	LossDev   []float64
	LERTrain  []float64
	LERDev    []float64
}

// Add records the metrics measured at step.
func (h *History) Add(step int, lossTrain, lossDev, lerTrain, lerDev float64) {
	h.Steps = append(h.Steps, step)
	h.LossTrain = append(h.LossTrain, lossTrain)
	h.LossDev = append(h.LossDev, lossDev)
	h.LERTrain = append(h.LERTrain, lerTrain)
	h.LERDev = append(h.LERDev, lerDev)
}

// Len returns the number of records.
func (h *History) Len() int { return len(h.Steps) }

// WriteCSV writes the history with a header line.
func (h *History) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create history: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(historyHeader); err != nil {
		f.Close()
		return err
	}
	for i, step := range h.Steps {
		rec := []string{strconv.Itoa(step)}
		for _, v := range []float64{h.LossTrain[i], h.LossDev[i], h.LERTrain[i], h.LERDev[i]} {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(rec); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	return f.Close()
}

// ReadHistoryCSV reads a history written by WriteCSV.
func ReadHistoryCSV(path string) (*History, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(historyHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	h := &History{}
	for i, rec := range records {
		if i == 0 && rec[0] == historyHeader[0] {
			continue
		}
		step, err := strconv.Atoi(rec[0])
		if err != nil {
			return nil, fmt.Errorf("history line %d: %w", i+1, err)
		}
		var v [4]float64
		for j := range v {
			if v[j], err = strconv.ParseFloat(rec[j+1], 64); err != nil {
				return nil, fmt.Errorf("history line %d: %w", i+1, err)
			}
		}
		h.Add(step, v[0], v[1], v[2], v[3])
	}
	return h, nil
}
