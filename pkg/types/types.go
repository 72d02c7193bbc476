// Package types defines the core domain model shared by the batchfeed packages.
package types

// Shape is the dimension list of one array. The first entry is the sample count.
type Shape []int

// Shapes is the shape metadata of a sample file, grouped the way a training
// container stores its arrays.
type Shapes struct {
	Features []Shape `json:"features"` // feature arrays, at least one for a usable file
	Truth    []Shape `json:"truth"`    // truth (label) arrays
	Weights  []Shape `json:"weights"`  // per-sample weight arrays
}

// SampleCount returns the leading dimension of the first feature shape.
// ok is false when there is no feature shape or it has no dimensions.
func (s Shapes) SampleCount() (n int, ok bool) {
	if len(s.Features) == 0 || len(s.Features[0]) == 0 {
		return 0, false
	}
	return s.Features[0][0], true
}

// Container is an ordered collection of samples that can be filled from a file,
// concatenated, and cut from the front. C is the concrete container type,
// normally a pointer (e.g. *trainset.TrainData).
//
// The generator never inspects the payload; it only relies on these operations.
type Container[C any] interface {
	// ReadFromFile replaces the contents with the samples stored in path.
	// A corrupt or partial file yields an error; callers may retry.
	ReadFromFile(path string) error

	// ReadShapesFromFile reads only the shape metadata of path.
	ReadShapesFromFile(path string) (Shapes, error)

	// Append adds all samples of other after the existing ones.
	Append(other C) error

	// Split removes the first n samples and returns them as a new container.
	Split(n int) C

	// Clear drops all samples.
	Clear()

	// NElements returns the number of samples held.
	NElements() int
}
