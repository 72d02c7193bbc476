// Package trainset implements TrainData, the sample container fed to the
// batch generator, together with its on-disk format.
//
// A TrainData holds three groups of float32 arrays: features, truth and
// weights. Every array is row-major and its first dimension is the sample
// count, which all arrays of one container share.
package trainset

import (
	"fmt"

	"github.com/ChuLiYu/batchfeed/pkg/types"
)

// Array is a dense float32 tensor. Shape[0] is the number of samples.
type Array struct {
	Shape types.Shape
	Data  []float32
}

// NewArray checks that data fits shape and returns the Array.
func NewArray(shape []int, data []float32) (*Array, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: array needs at least one dimension", ErrShapeMismatch)
	}
	size, err := shapeSize(shape)
	if err != nil {
		return nil, err
	}
	if size != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShapeMismatch, shape, size, len(data))
	}
	return &Array{Shape: append(types.Shape(nil), shape...), Data: data}, nil
}

func (a *Array) rows() int {
	if len(a.Shape) == 0 {
		return 0
	}
	return a.Shape[0]
}

// rowSize is the number of values per sample.
func (a *Array) rowSize() int {
	n := 1
	for _, d := range a.Shape[1:] {
		n *= d
	}
	return n
}

func (a *Array) clone() *Array {
	return &Array{
		Shape: append(types.Shape(nil), a.Shape...),
		Data:  append([]float32(nil), a.Data...),
	}
}

func sameInnerShape(a, b *Array) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for i := 1; i < len(a.Shape); i++ {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	return true
}

func shapeSize(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, shape)
		}
		n *= d
	}
	return n, nil
}

// TrainData is an ordered set of samples split into feature, truth and
// weight arrays. The zero value is an empty container ready to use.
type TrainData struct {
	Features []*Array
	Truth    []*Array
	Weights  []*Array
}

// New builds a TrainData and checks that every array has the same sample count.
func New(features, truth, weights []*Array) (*TrainData, error) {
	td := &TrainData{Features: features, Truth: truth, Weights: weights}
	if err := td.validate(); err != nil {
		return nil, err
	}
	return td, nil
}

func (td *TrainData) groups() [3][]*Array {
	return [3][]*Array{td.Features, td.Truth, td.Weights}
}

func (td *TrainData) empty() bool {
	return len(td.Features) == 0 && len(td.Truth) == 0 && len(td.Weights) == 0
}

func (td *TrainData) validate() error {
	n := -1
	for _, group := range td.groups() {
		for _, a := range group {
			if len(a.Shape) == 0 {
				return fmt.Errorf("%w: array without dimensions", ErrShapeMismatch)
			}
			if n == -1 {
				n = a.rows()
			} else if a.rows() != n {
				return fmt.Errorf("%w: arrays disagree on sample count (%d vs %d)", ErrShapeMismatch, n, a.rows())
			}
		}
	}
	return nil
}

// NElements returns the number of samples, taken from the first feature array.
func (td *TrainData) NElements() int {
	if len(td.Features) == 0 {
		return 0
	}
	return td.Features[0].rows()
}

// Shapes returns a copy of the shape metadata.
func (td *TrainData) Shapes() types.Shapes {
	copyShapes := func(arrays []*Array) []types.Shape {
		out := make([]types.Shape, 0, len(arrays))
		for _, a := range arrays {
			out = append(out, append(types.Shape(nil), a.Shape...))
		}
		return out
	}
	return types.Shapes{
		Features: copyShapes(td.Features),
		Truth:    copyShapes(td.Truth),
		Weights:  copyShapes(td.Weights),
	}
}

// Append adds the samples of other after the existing ones. An empty
// receiver takes a copy of other's arrays; otherwise both containers must
// have the same array layout apart from the sample dimension.
func (td *TrainData) Append(other *TrainData) error {
	if other == nil || other.empty() {
		return nil
	}
	if td.empty() {
		td.Features = cloneArrays(other.Features)
		td.Truth = cloneArrays(other.Truth)
		td.Weights = cloneArrays(other.Weights)
		return nil
	}

	mine, theirs := td.groups(), other.groups()
	for g := range mine {
		if len(mine[g]) != len(theirs[g]) {
			return fmt.Errorf("%w: %d arrays vs %d", ErrShapeMismatch, len(mine[g]), len(theirs[g]))
		}
		for i := range mine[g] {
			if !sameInnerShape(mine[g][i], theirs[g][i]) {
				return fmt.Errorf("%w: cannot append %v to %v", ErrShapeMismatch, theirs[g][i].Shape, mine[g][i].Shape)
			}
		}
	}
	for g := range mine {
		for i, a := range mine[g] {
			b := theirs[g][i]
			a.Data = append(a.Data, b.Data...)
			a.Shape[0] += b.rows()
		}
	}
	return nil
}

// Split removes the first n samples and returns them. n is clamped to
// [0, NElements()].
func (td *TrainData) Split(n int) *TrainData {
	if n < 0 {
		n = 0
	}
	if total := td.NElements(); n > total {
		n = total
	}

	splitGroup := func(arrays []*Array) []*Array {
		out := make([]*Array, 0, len(arrays))
		for _, a := range arrays {
			k := n * a.rowSize()
			head := &Array{
				Shape: append(types.Shape(nil), a.Shape...),
				Data:  append([]float32(nil), a.Data[:k]...),
			}
			head.Shape[0] = n
			a.Data = a.Data[k:]
			a.Shape[0] -= n
			out = append(out, head)
		}
		return out
	}

	return &TrainData{
		Features: splitGroup(td.Features),
		Truth:    splitGroup(td.Truth),
		Weights:  splitGroup(td.Weights),
	}
}

// Clear drops all arrays.
func (td *TrainData) Clear() {
	td.Features = nil
	td.Truth = nil
	td.Weights = nil
}

func cloneArrays(arrays []*Array) []*Array {
	if arrays == nil {
		return nil
	}
	out := make([]*Array, len(arrays))
	for i, a := range arrays {
		out[i] = a.clone()
	}
	return out
}
