package main

// Example command that walks one epoch of a corpus split and converts each
// mini-batch into gomlx tensors.
//
// The dataset is lazy: only frame_num.json and the first utterance are read
// up front, the feature and label arrays of a batch are read when the batch
// is drawn.
//
// Usage:
//   go run ./datasets/example -root /data/librispeech -split dev_clean \
//     -train_size train_clean100 -label character

import (
	"flag"
	"fmt"
	"log"

	"github.com/Noofbiz/speechBatch/corpus"
	"github.com/Noofbiz/speechBatch/datasets"
)

func main() {
	root := flag.String("root", "../data", "corpus root holding inputs/ and labels/")
	name := flag.String("corpus", string(corpus.Librispeech), "corpus name")
	split := flag.String("split", "dev_clean", "data split")
	trainSize := flag.String("train_size", "train_clean100", "train size variant")
	label := flag.String("label", "character", "label type")
	batchSize := flag.Int("batch_size", 8, "utterances per batch")
	flag.Parse()

	layout := corpus.Layout{
		Root:        *root,
		Corpus:      corpus.Name(*name),
		Split:       *split,
		TrainSize:   *trainSize,
		LabelTypes:  []string{*label},
		SpeakerDirs: corpus.Name(*name) == corpus.CSJ,
	}
	ds, err := datasets.New(layout, nil, datasets.Config{
		Name:      *split,
		BatchSize: *batchSize,
		SortUtt:   true,
	})
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	fmt.Printf("Using split %s from %s\n", *split, layout.InputDir())
	fmt.Printf("Total utterances available: %d (input size %d)\n", ds.Len(), ds.InputSize())
	if ds.Len() == 0 {
		return
	}

	for step := 0; ; step++ {
		b, nextEpoch, err := ds.Next(0)
		if err != nil {
			log.Fatalf("failed to draw batch %d: %v", step, err)
		}
		inputs, labels := b.Tensors()
		fmt.Printf("Batch %d: %d utterances, inputs %s, labels %s\n",
			step, b.Size(), inputs[0].Shape(), labels[0].Shape())
		if step == 0 {
			fmt.Printf("  First utterance: %s (%d frames)\n", b.Names[0], b.InputLens[0])
			fmt.Printf("  First labels: %v\n", b.LabelRow(0, 0))
		}
		if nextEpoch {
			break
		}
	}

	fmt.Println("\nExample completed successfully!")
}
