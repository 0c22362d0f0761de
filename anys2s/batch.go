package anys2s

import (
	"crypto/md5"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/unixpickle/anyrul/anyrnn"
	"github.com/unixpickle/anyrul/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// Padding values for batched sequences.
const (
	InputPad = 0
	LabelPad = -1
)

// A Sample is a feature sequence with its label sequence.
type Sample struct {
	// Name identifies the source of the sample, such as a
	// bearing name.
	Name string

	// Input has one feature vector per step.
	Input [][]float64

	// Output has one label vector per step.
	Output [][]float64
}

// Truncate drops the first k label steps and the matching
// k*ratio input steps.
//
// At least one step of each sequence is always kept.
func (s *Sample) Truncate(k, ratio int) *Sample {
	k = min(k, len(s.Output)-1)
	k = min(k, (len(s.Input)-1)/ratio)
	if k <= 0 {
		return s
	}
	return &Sample{
		Name:   s.Name,
		Input:  s.Input[k*ratio:],
		Output: s.Output[k:],
	}
}

// RandomTruncate truncates by a random k in the range
// [0, round(fraction*len(s.Output))].
func (s *Sample) RandomTruncate(r *rand.Rand, fraction float64, ratio int) *Sample {
	max := int(math.Round(fraction * float64(len(s.Output))))
	var k int
	if r != nil {
		k = r.Intn(max + 1)
	} else {
		k = rand.Intn(max + 1)
	}
	return s.Truncate(k, ratio)
}

// A SampleList is a list of samples which can be shuffled
// and split with anysgd.
type SampleList []*Sample

// Len returns the number of samples.
func (s SampleList) Len() int {
	return len(s)
}

// Swap swaps two samples.
func (s SampleList) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

// Slice copies a sub-list.
func (s SampleList) Slice(i, j int) anysgd.SampleList {
	return append(SampleList{}, s[i:j]...)
}

// Hash hashes the name of a sample, so that hash splits
// keep every sample from a source on the same side.
func (s SampleList) Hash(i int) []byte {
	sum := md5.Sum([]byte(s[i].Name))
	return sum[:]
}

// A Batch is a padded, sorted group of samples.
//
// Sequences are sorted by descending label length, with
// ties broken by descending input length.
type Batch struct {
	// Inputs is a time-major (InputLens[0], batch,
	// Features) tensor padded with InputPad.
	Inputs anyvec.Vector

	// Targets is a time-major (LabelLens[0], batch,
	// OutSize) tensor padded with LabelPad.
	Targets anyvec.Vector

	InputLens []int
	LabelLens []int
	Names     []string

	Features int
	OutSize  int
}

// NewBatch pads and sorts samples into a Batch.
//
// Every sample must be non-empty with consistent vector
// sizes, and the sorted input lengths must be
// non-increasing.
func NewBatch(c anyvec.Creator, samples []*Sample) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.New("new batch: no samples")
	}
	for _, s := range samples {
		if len(s.Input) == 0 || len(s.Output) == 0 {
			return nil, fmt.Errorf("new batch: sample %q is empty", s.Name)
		}
	}
	sorted := append([]*Sample{}, samples...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i].Output) != len(sorted[j].Output) {
			return len(sorted[i].Output) > len(sorted[j].Output)
		}
		return len(sorted[i].Input) > len(sorted[j].Input)
	})

	res := &Batch{
		Features: len(sorted[0].Input[0]),
		OutSize:  len(sorted[0].Output[0]),
	}
	for _, s := range sorted {
		res.InputLens = append(res.InputLens, len(s.Input))
		res.LabelLens = append(res.LabelLens, len(s.Output))
		res.Names = append(res.Names, s.Name)
	}
	if err := anyrnn.CheckLengths(res.InputLens); err != nil {
		return nil, fmt.Errorf("new batch: %w", err)
	}

	inputs, err := padTimeMajor(sorted, res.InputLens[0], res.Features, InputPad,
		func(s *Sample) [][]float64 { return s.Input })
	if err != nil {
		return nil, essentials.AddCtx("new batch", err)
	}
	targets, err := padTimeMajor(sorted, res.LabelLens[0], res.OutSize, LabelPad,
		func(s *Sample) [][]float64 { return s.Output })
	if err != nil {
		return nil, essentials.AddCtx("new batch", err)
	}
	res.Inputs = c.MakeVectorData(c.MakeNumericList(inputs))
	res.Targets = c.MakeVectorData(c.MakeNumericList(targets))
	return res, nil
}

// Size returns the number of sequences.
func (b *Batch) Size() int {
	return len(b.LabelLens)
}

func padTimeMajor(samples []*Sample, steps, width int, pad float64,
	seq func(s *Sample) [][]float64) ([]float64, error) {
	batch := len(samples)
	res := make([]float64, steps*batch*width)
	for i := range res {
		res[i] = pad
	}
	for b, s := range samples {
		for t, vec := range seq(s) {
			if len(vec) != width {
				return nil, fmt.Errorf("sample %q: step %d has size %d (expected %d)",
					s.Name, t, len(vec), width)
			}
			copy(res[(t*batch+b)*width:], vec)
		}
	}
	return res, nil
}
