package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/textBowl/iterator"
)

// Batch materializes one emitted batch of sequences as gomlx tensors, with
// every token row right-padded to the batch's longest sequence.
type Batch struct {
	// Size is the number of examples in the batch.
	Size int

	// MaxLen is the padded row length.
	MaxLen int

	// Tokens is [Size, MaxLen] int32, right-padded with the pad token.
	Tokens *tensors.Tensor

	// Lengths is [Size] int32, the true sequence lengths.
	Lengths *tensors.Tensor

	// Labels is [Size] int32.
	Labels *tensors.Tensor
}

// NewBatch builds the padded tensor batch for seqs.
func NewBatch(seqs []Sequence, pad int32) (*Batch, error) {
	if len(seqs) == 0 {
		return nil, fmt.Errorf("cannot build a batch from zero examples")
	}

	maxLen := 0
	for _, s := range seqs {
		if len(s.Tokens) > maxLen {
			maxLen = len(s.Tokens)
		}
	}

	rows := make([][]int32, len(seqs))
	lengths := make([]int32, len(seqs))
	labels := make([]int32, len(seqs))
	for i, s := range seqs {
		row := make([]int32, maxLen)
		n := copy(row, s.Tokens)
		for j := n; j < maxLen; j++ {
			row[j] = pad
		}
		rows[i] = row
		lengths[i] = int32(len(s.Tokens))
		labels[i] = s.Label
	}

	return &Batch{
		Size:    len(seqs),
		MaxLen:  maxLen,
		Tokens:  tensors.FromAnyValue(rows),
		Lengths: tensors.FromAnyValue(lengths),
		Labels:  tensors.FromAnyValue(labels),
	}, nil
}

// TensorBatch is a batch constructed directly from named tensors, as the
// BPTT iterators produce (conventionally "text" and "target").
type TensorBatch struct {
	// Size is the number of examples (parallel streams) in the batch.
	Size int

	fields map[string]*tensors.Tensor
}

// BatchFromTensors builds a TensorBatch from named tensors.
func BatchFromTensors(batchSize int, named map[string]*tensors.Tensor) (*TensorBatch, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	if len(named) == 0 {
		return nil, fmt.Errorf("no named tensors provided")
	}
	fields := make(map[string]*tensors.Tensor, len(named))
	for name, t := range named {
		if t == nil {
			return nil, fmt.Errorf("named tensor %q is nil", name)
		}
		fields[name] = t
	}
	return &TensorBatch{Size: batchSize, fields: fields}, nil
}

// Field returns the named tensor.
func (b *TensorBatch) Field(name string) (*tensors.Tensor, error) {
	t, ok := b.fields[name]
	if !ok {
		return nil, fmt.Errorf("batch has no field %q", name)
	}
	return t, nil
}

// BPTTTensorBatch encodes one BPTT window into a named-tensor batch with
// "text" and "target" fields.
func BPTTTensorBatch(w iterator.BPTTBatch[int32]) (*TensorBatch, error) {
	return BatchFromTensors(w.BatchSize, map[string]*tensors.Tensor{
		"text":   tensors.FromAnyValue(w.Text),
		"target": tensors.FromAnyValue(w.Target),
	})
}

// Collate returns the collate function wiring an iterator into a gomlx
// train.Dataset: inputs are the padded tokens and true lengths, labels the
// class labels.
func Collate(pad int32) iterator.Collate[Sequence] {
	return func(minibatch []Sequence) (inputs, labels []*tensors.Tensor, err error) {
		b, err := NewBatch(minibatch, pad)
		if err != nil {
			return nil, nil, err
		}
		return []*tensors.Tensor{b.Tokens, b.Lengths}, []*tensors.Tensor{b.Labels}, nil
	}
}

// PaddingFraction reports the padding waste of batching seqs together: the
// share of slots in the padded [batch, max-len] matrix that hold pad tokens.
func PaddingFraction(seqs []Sequence) float64 {
	if len(seqs) == 0 {
		return 0
	}
	maxLen := 0
	total := 0
	for _, s := range seqs {
		if len(s.Tokens) > maxLen {
			maxLen = len(s.Tokens)
		}
		total += len(s.Tokens)
	}
	slots := len(seqs) * maxLen
	if slots == 0 {
		return 0
	}
	return float64(slots-total) / float64(slots)
}
