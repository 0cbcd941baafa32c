// Command padstats measures how much padding bucketed batching saves over
// plain epoch orders on a CSV token corpus, and renders the per-batch padding
// fractions as a scatter plot.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Noofbiz/textBowl/datasets"
	"github.com/Noofbiz/textBowl/iterator"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// batchStats is one strategy's per-batch padding measurements.
type batchStats struct {
	name      string
	fractions []float64
}

func (s batchStats) mean() float64 {
	if len(s.fractions) == 0 {
		return 0
	}
	total := 0.0
	for _, f := range s.fractions {
		total += f
	}
	return total / float64(len(s.fractions))
}

// runEpoch drives one epoch of batches and records each batch's padding
// fraction.
func runEpoch(name string, it *iterator.Iterator[datasets.Sequence]) batchStats {
	stats := batchStats{name: name}
	examples := 0
	for b := range it.Batches() {
		stats.fractions = append(stats.fractions, datasets.PaddingFraction(b))
		examples += len(b)
	}
	log.Printf("%s: %d batches over %d examples, mean padding %.4f",
		name, len(stats.fractions), examples, stats.mean())
	return stats
}

func main() {
	patternFlag := flag.String("pattern", "assets/train/*.csv", "glob pattern for token CSV files")
	outDir := flag.String("out", "plots", "output directory for the generated plot")
	outCSV := flag.String("out-csv", "", "if set, write per-batch padding fractions to this CSV and skip plotting")
	batchSize := flag.Int("batch-size", 32, "batch capacity in examples")
	tokenBudget := flag.Int("token-budget", 0, "if >0, batch by total tokens instead of example count")
	lookahead := flag.Int("lookahead", iterator.DefaultLookahead, "pool window multiplier for the bucketed strategy")
	cacheSize := flag.Int("cache-size", datasets.DefaultFileCacheSize, "parsed-file LRU cache size")
	seed := flag.Uint64("seed", 42, "random seed shared by the shuffled strategies")
	flag.Parse()

	globPaths, _ := filepath.Glob(*patternFlag)
	log.Printf("Using CSV pattern: %s (found %d files)", *patternFlag, len(globPaths))

	text, err := datasets.NewTextDataset(*patternFlag, *cacheSize)
	if err != nil {
		log.Fatalf("failed to open text dataset: %v", err)
	}
	log.Printf("Text dataset loaded: total examples=%d", text.Len())

	ds, err := text.Materialize()
	if err != nil {
		log.Fatalf("failed to materialize dataset: %v", err)
	}

	capacity := *batchSize
	var sizeFn iterator.SizeFunc[datasets.Sequence]
	if *tokenBudget > 0 {
		capacity = *tokenBudget
		sizeFn = datasets.TokenBudget
		log.Printf("Batching by token budget: %d tokens per batch", capacity)
	}

	newIterator := func(bucket bool) *iterator.Iterator[datasets.Sequence] {
		it, err := iterator.New[datasets.Sequence](ds, iterator.Options[datasets.Sequence]{
			BatchSize:   capacity,
			SortKey:     datasets.SortKey,
			BatchSizeFn: sizeFn,
			Train:       true,
			Bucket:      bucket,
			Lookahead:   *lookahead,
			Seed:        *seed,
		})
		if err != nil {
			log.Fatalf("failed to build iterator: %v", err)
		}
		return it
	}

	plain := runEpoch("shuffled", newIterator(false))
	bucketed := runEpoch("bucketed", newIterator(true))

	if plainMean, bucketMean := plain.mean(), bucketed.mean(); plainMean > 0 {
		saved := (plainMean - bucketMean) / plainMean * 100
		fmt.Printf("Padding: shuffled %.4f, bucketed %.4f (%.1f%% saved)\n",
			plainMean, bucketMean, saved)
	}

	if *outCSV != "" {
		if err := writeStatsCSV(*outCSV, plain, bucketed); err != nil {
			log.Fatalf("failed to write CSV %s: %v", *outCSV, err)
		}
		log.Printf("Padding statistics written to %s", *outCSV)
		return
	}

	if err := plotStats(*outDir, plain, bucketed); err != nil {
		log.Fatalf("failed to generate plot: %v", err)
	}
	log.Printf("Padding plot written to %s", *outDir)
}

// writeStatsCSV writes one row per batch with both strategies' padding
// fractions; rows past the shorter strategy's batch count leave its column
// empty.
func writeStatsCSV(path string, plain, bucketed batchStats) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"batch", plain.name, bucketed.name}); err != nil {
		return err
	}
	rows := max(len(plain.fractions), len(bucketed.fractions))
	for i := range rows {
		row := []string{strconv.Itoa(i), "", ""}
		if i < len(plain.fractions) {
			row[1] = strconv.FormatFloat(plain.fractions[i], 'f', 6, 64)
		}
		if i < len(bucketed.fractions) {
			row[2] = strconv.FormatFloat(bucketed.fractions[i], 'f', 6, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// plotStats writes a PNG scattering per-batch padding fractions for the
// shuffled (grey) and bucketed (blue) strategies.
func plotStats(outDir string, plain, bucketed batchStats) error {
	p := plot.New()
	p.Title.Text = "Per-batch padding: shuffled (grey) vs bucketed (blue)"
	p.X.Label.Text = "batch"
	p.Y.Label.Text = "padding fraction"

	toXYs := func(s batchStats) plotter.XYs {
		xys := make(plotter.XYs, 0, len(s.fractions))
		for i, f := range s.fractions {
			xys = append(xys, plotter.XY{X: float64(i), Y: f})
		}
		return xys
	}

	pl, err := plotter.NewScatter(toXYs(plain))
	if err != nil {
		return err
	}
	pl.GlyphStyle.Color = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	pl.GlyphStyle.Radius = vg.Points(1.8)
	p.Add(pl)
	p.Legend.Add(plain.name, pl)

	bk, err := plotter.NewScatter(toXYs(bucketed))
	if err != nil {
		return err
	}
	bk.GlyphStyle.Color = color.RGBA{R: 20, G: 80, B: 200, A: 220}
	bk.GlyphStyle.Radius = vg.Points(2.8)
	p.Add(bk)
	p.Legend.Add(bucketed.name, bk)

	p.Add(plotter.NewGrid())
	p.Y.Min = 0
	if top := math.Max(maxFraction(plain), maxFraction(bucketed)); top > 0 {
		p.Y.Max = top * 1.06
	} else {
		p.Y.Max = 1
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	outPath := filepath.Join(outDir, "padding.png")
	return p.Save(8*vg.Inch, 6*vg.Inch, outPath)
}

func maxFraction(s batchStats) float64 {
	top := 0.0
	for _, f := range s.fractions {
		if f > top {
			top = f
		}
	}
	return top
}
