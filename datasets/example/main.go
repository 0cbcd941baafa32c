package main

// Example command that demonstrates loading a CSV token dataset with lazy
// loading, batching it with the length-bucketed iterator, materializing a
// batch as gomlx tensors, and windowing the same corpus for language-model
// training with the BPTT iterator.
//
// Usage:
//   go run ./example -pattern 'assets/train/*.csv'
//
// The CSVs need a "tokens" column of space-separated token ids; a "label"
// column is optional. If no CSV is found the example prints an error and
// exits.

import (
	"flag"
	"fmt"
	"log"

	"github.com/Noofbiz/textBowl/datasets"
	"github.com/Noofbiz/textBowl/iterator"
)

func main() {
	pattern := flag.String("pattern", "assets/train/*.csv", "glob pattern for token CSV files")
	flag.Parse()

	// Text dataset: lazy CSV loading behind a bounded parsed-file cache.
	text, err := datasets.NewTextDataset(*pattern, 0)
	if err != nil {
		log.Fatalf("failed to load text dataset: %v", err)
	}
	fmt.Printf("Using CSV pattern: %s\n", *pattern)
	fmt.Printf("Total examples available: %d\n", text.Len())

	ds, err := text.Materialize()
	if err != nil {
		log.Fatalf("failed to materialize dataset: %v", err)
	}

	// Length-bucketed training iterator: shuffled presentation, batches of
	// similar lengths to keep padding low.
	it, err := iterator.New[datasets.Sequence](ds, iterator.Options[datasets.Sequence]{
		BatchSize: 8,
		SortKey:   datasets.SortKey,
		Train:     true,
		Bucket:    true,
		Seed:      42,
	})
	if err != nil {
		log.Fatalf("failed to build iterator: %v", err)
	}

	shown := 0
	for minibatch := range it.Batches() {
		b, err := datasets.NewBatch(minibatch, 0)
		if err != nil {
			log.Fatalf("failed to build tensor batch: %v", err)
		}
		fmt.Printf("Batch of %d examples padded to %d tokens (%.1f%% padding)\n",
			b.Size, b.MaxLen, 100*datasets.PaddingFraction(minibatch))
		if shown++; shown == 3 {
			break
		}
	}

	fmt.Println()

	// BPTT over the same corpus: concatenate every sequence into one token
	// stream and emit (text, target) windows.
	corpus := datasets.CorpusFromDataset("text", ds, 0, false)
	bptt, err := iterator.NewBPTT[int32](corpus, iterator.BPTTOptions{
		BatchSize: 4,
		Len:       16,
	})
	if err != nil {
		log.Fatalf("failed to build bptt iterator: %v", err)
	}
	fmt.Printf("Corpus of %d tokens yields %d windows per epoch\n",
		len(corpus.Tokens()), bptt.WindowsPerEpoch())

	shown = 0
	for w := range bptt.Batches() {
		tb, err := datasets.BPTTTensorBatch(w)
		if err != nil {
			log.Fatalf("failed to build bptt tensor batch: %v", err)
		}
		fmt.Printf("Window: %d timesteps x %d streams -> tensor batch size %d\n",
			w.SeqLen, w.BatchSize, tb.Size)
		if shown++; shown == 3 {
			break
		}
	}
}
