// Package feed exposes a batch generator as a gomlx training dataset.
package feed

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/train"

	"github.com/ChuLiYu/batchfeed/internal/trainset"
)

// BatchSource is the part of a generator the dataset drives.
// *generator.Generator[*trainset.TrainData] implements it.
type BatchSource interface {
	PrepareNextEpoch() error
	GetBatch() (*trainset.TrainData, error)
	NBatches() int
}

var _ train.Dataset = (*Dataset)(nil)

// Dataset yields one generator batch per Yield and ends the epoch with
// io.EOF after NBatches batches. The first Yield starts the first epoch.
type Dataset struct {
	name     string
	src      BatchSource
	started  bool
	yielded  int
	resetErr error
}

// NewDataset wraps src.
func NewDataset(name string, src BatchSource) *Dataset {
	return &Dataset{name: name, src: src}
}

// Name implements train.Dataset.
func (d *Dataset) Name() string {
	return d.name
}

// Reset implements train.Dataset by starting the next epoch. A failure is
// returned by the following Yield.
func (d *Dataset) Reset() {
	d.started = true
	d.yielded = 0
	d.resetErr = d.src.PrepareNextEpoch()
}

// Yield implements train.Dataset. Inputs are the feature arrays; labels are
// the truth arrays followed by the weight arrays.
func (d *Dataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if !d.started {
		d.Reset()
	}
	if d.resetErr != nil {
		return nil, nil, nil, fmt.Errorf("feed %s: start epoch: %w", d.name, d.resetErr)
	}
	if d.yielded >= d.src.NBatches() {
		return nil, nil, nil, io.EOF
	}

	batch, err := d.src.GetBatch()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("feed %s: batch %d: %w", d.name, d.yielded, err)
	}
	d.yielded++

	inputs, labels = ToTensors(batch)
	return d.name, inputs, labels, nil
}

// ToTensors converts every array of td into a tensor of the same shape.
func ToTensors(td *trainset.TrainData) (inputs, labels []*tensors.Tensor) {
	inputs = make([]*tensors.Tensor, 0, len(td.Features))
	for _, a := range td.Features {
		inputs = append(inputs, tensors.FromFlatDataAndDimensions(a.Data, a.Shape...))
	}
	labels = make([]*tensors.Tensor, 0, len(td.Truth)+len(td.Weights))
	for _, a := range td.Truth {
		labels = append(labels, tensors.FromFlatDataAndDimensions(a.Data, a.Shape...))
	}
	for _, a := range td.Weights {
		labels = append(labels, tensors.FromFlatDataAndDimensions(a.Data, a.Shape...))
	}
	return inputs, labels
}
