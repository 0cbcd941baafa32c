package datasets

// This package provides the dataset collaborators consumed by the iterator
// package: an in-memory sequence dataset, a lazily loaded CSV-backed one, a
// single-field token corpus for BPTT iteration, and the batch containers
// that materialize emitted batches as gomlx tensors.
//
// The CSV-backed dataset uses lazy loading - it stores file paths and only
// parses the actual data when needed, keeping a bounded cache of parsed
// files, since token dumps can be large.
//
// Examples carry already-numericalized tokens: tokenization and vocabulary
// lookup happen upstream of this module.

// Sequence is a single variable-length example: a token sequence and an
// optional class label.
type Sequence struct {
	Tokens []int32
	Label  int32
}

// Len is the sequence's length key: its token count.
func (s Sequence) Len() int {
	return len(s.Tokens)
}

// SortKey orders Sequences by token count. It is the sort key handed to the
// iterator package so length-similar examples batch together.
func SortKey(s Sequence) int {
	return len(s.Tokens)
}

// TokenBudget is a batch size function that measures batches in tokens
// instead of examples: the effective batch size is the running token total.
func TokenBudget(s Sequence, count, sofar int) int {
	return sofar + len(s.Tokens)
}
