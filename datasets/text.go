package datasets

import (
	"encoding/csv"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"k8s.io/klog/v2"
)

// DefaultFileCacheSize bounds how many parsed CSV files a TextDataset keeps
// in memory for repeated random access.
const DefaultFileCacheSize = 8

// TextDataset lazily loads token sequences from CSV files matching a glob
// pattern. Each CSV needs a "tokens" column holding space-separated token
// ids; a "label" column is optional and defaults to zero. Files are parsed
// on demand and kept in a bounded LRU cache, so random access across a large
// corpus stays cheap without holding every file in memory.
type TextDataset struct {
	// Pattern used to find the CSV files (e.g., "assets/train/*.csv").
	Pattern string

	// List of CSV file paths matching the pattern
	csvPaths []string

	// Column indices discovered from the first file
	colIndex map[string]int
	hasLabel bool

	// Cache for counting rows in each file (index -> row count)
	rowCounts map[int]int

	// Cumulative counts for fast index mapping
	cumCounts []int

	// Total number of examples across all files
	totalExamples int

	// LRU cache of parsed files (file index -> []Sequence)
	cache *lru.Cache
}

// NewTextDataset creates a text dataset that lazily loads CSV files matching
// the given pattern. cacheSize bounds the parsed-file cache; zero means
// DefaultFileCacheSize.
func NewTextDataset(pattern string, cacheSize int) (*TextDataset, error) {
	csvPaths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
	}
	if len(csvPaths) == 0 {
		return nil, fmt.Errorf("no CSV files found matching pattern: %s", pattern)
	}

	if cacheSize <= 0 {
		cacheSize = DefaultFileCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create file cache: %w", err)
	}

	ds := &TextDataset{
		Pattern:   pattern,
		csvPaths:  csvPaths,
		rowCounts: make(map[int]int),
		cache:     cache,
	}

	if err := ds.initializeColumns(); err != nil {
		return nil, err
	}
	if err := ds.buildIndex(); err != nil {
		return nil, err
	}

	return ds, nil
}

// initializeColumns reads the first CSV to determine column indices
func (d *TextDataset) initializeColumns() error {
	file, err := os.Open(d.csvPaths[0])
	if err != nil {
		return fmt.Errorf("failed to open first CSV %s: %w", d.csvPaths[0], err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	d.colIndex = make(map[string]int)
	for i, col := range header {
		d.colIndex[strings.TrimSpace(strings.ToLower(col))] = i
	}

	if _, ok := d.colIndex["tokens"]; !ok {
		return fmt.Errorf("required column %q not found in CSV", "tokens")
	}
	_, d.hasLabel = d.colIndex["label"]

	return nil
}

// buildIndex counts rows in all files and builds cumulative counts
func (d *TextDataset) buildIndex() error {
	d.cumCounts = make([]int, len(d.csvPaths)+1)
	d.cumCounts[0] = 0

	for i, path := range d.csvPaths {
		count, err := countCSVRows(path)
		if err != nil {
			return fmt.Errorf("failed to count rows in %s: %w", path, err)
		}
		d.rowCounts[i] = count
		d.cumCounts[i+1] = d.cumCounts[i] + count
	}

	d.totalExamples = d.cumCounts[len(d.csvPaths)]
	return nil
}

// Len returns the total number of examples across all CSV files.
func (d *TextDataset) Len() int {
	return d.totalExamples
}

// mapGlobalIndex maps a global index to (file index, row index within file)
func (d *TextDataset) mapGlobalIndex(globalIdx int) (fileIdx, localIdx int) {
	for i := range len(d.csvPaths) {
		if globalIdx < d.cumCounts[i+1] {
			return i, globalIdx - d.cumCounts[i]
		}
	}
	// Should never reach here if globalIdx is valid
	return len(d.csvPaths) - 1, d.rowCounts[len(d.csvPaths)-1] - 1
}

// parseRecord converts one CSV record into a Sequence.
func (d *TextDataset) parseRecord(record []string) (Sequence, error) {
	col := d.colIndex["tokens"]
	if col >= len(record) {
		return Sequence{}, fmt.Errorf("record has no tokens column")
	}
	tokens, err := parseTokens(record[col])
	if err != nil {
		return Sequence{}, fmt.Errorf("failed to parse tokens: %w", err)
	}
	seq := Sequence{Tokens: tokens}
	if d.hasLabel {
		label, err := parseInt32(record[d.colIndex["label"]])
		if err != nil {
			return Sequence{}, fmt.Errorf("failed to parse label: %w", err)
		}
		seq.Label = label
	}
	return seq, nil
}

// loadFile parses all sequences of one file, serving from the cache when the
// file was parsed recently.
func (d *TextDataset) loadFile(fileIdx int) ([]Sequence, error) {
	if cached, ok := d.cache.Get(fileIdx); ok {
		return cached.([]Sequence), nil
	}

	path := d.csvPaths[fileIdx]
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	seqs := make([]Sequence, 0, d.rowCounts[fileIdx])
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row in %s: %w", path, err)
		}
		seq, err := d.parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, len(seqs), err)
		}
		seqs = append(seqs, seq)
	}

	d.cache.Add(fileIdx, seqs)
	return seqs, nil
}

// Example reads a single example by global index.
func (d *TextDataset) Example(idx int) (Sequence, error) {
	if idx < 0 || idx >= d.totalExamples {
		return Sequence{}, fmt.Errorf("index %d out of range [0, %d)", idx, d.totalExamples)
	}
	fileIdx, localIdx := d.mapGlobalIndex(idx)
	seqs, err := d.loadFile(fileIdx)
	if err != nil {
		return Sequence{}, err
	}
	return seqs[localIdx], nil
}

// Batch reads multiple examples by their global indices.
func (d *TextDataset) Batch(indices []int) ([]Sequence, error) {
	out := make([]Sequence, len(indices))
	for i, idx := range indices {
		seq, err := d.Example(idx)
		if err != nil {
			return nil, err
		}
		out[i] = seq
	}
	return out, nil
}

// Materialize reads every file once, in order, into a MemoryDataset suitable
// for the indexable iterators.
func (d *TextDataset) Materialize() (*MemoryDataset, error) {
	seqs := make([]Sequence, 0, d.totalExamples)
	for fileIdx := range d.csvPaths {
		fileSeqs, err := d.loadFile(fileIdx)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, fileSeqs...)
	}
	return NewMemoryDataset(seqs), nil
}

// Stream returns a one-pass sequence over all examples in file order, for
// the streaming iterators. A read error is logged and terminates the stream.
func (d *TextDataset) Stream() iter.Seq[Sequence] {
	return func(yield func(Sequence) bool) {
		for fileIdx := range d.csvPaths {
			seqs, err := d.loadFile(fileIdx)
			if err != nil {
				klog.Errorf("textBowl/datasets: streaming %s: %v", d.csvPaths[fileIdx], err)
				return
			}
			for _, s := range seqs {
				if !yield(s) {
					return
				}
			}
		}
	}
}
