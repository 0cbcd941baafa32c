package datasets

// Corpus is a single-field token corpus for the BPTT iterators: one long
// contiguous stream of token ids, plus the field's padding token and layout
// preference. It implements iterator.Corpus[int32].
type Corpus struct {
	field      string
	tokens     []int32
	pad        int32
	batchFirst bool
}

// NewCorpus builds a corpus whose single field is named field. pad squares
// off the tail of the columnar layout; batchFirst selects [batch][time]
// windows.
func NewCorpus(field string, tokens []int32, pad int32, batchFirst bool) *Corpus {
	return &Corpus{field: field, tokens: tokens, pad: pad, batchFirst: batchFirst}
}

// CorpusFromDataset concatenates a dataset's sequences, in order, into one
// contiguous corpus. Useful for language modeling over a dataset of
// documents.
func CorpusFromDataset(field string, d *MemoryDataset, pad int32, batchFirst bool) *Corpus {
	var tokens []int32
	for i := range d.Len() {
		tokens = append(tokens, d.Example(i).Tokens...)
	}
	return NewCorpus(field, tokens, pad, batchFirst)
}

// Fields names the corpus fields; a Corpus always has exactly one.
func (c *Corpus) Fields() []string {
	return []string{c.field}
}

// Tokens returns the full contiguous token sequence.
func (c *Corpus) Tokens() []int32 {
	return c.tokens
}

// Pad returns the padding token id.
func (c *Corpus) Pad() int32 {
	return c.pad
}

// BatchFirst reports whether windows should be laid out [batch][time].
func (c *Corpus) BatchFirst() bool {
	return c.batchFirst
}
