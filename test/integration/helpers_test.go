package integration

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/batchfeed/internal/generator"
	"github.com/ChuLiYu/batchfeed/internal/trainset"
)

// sampleFile builds a container whose first feature column holds the sample
// ids first..first+n-1, so delivered samples can be traced back.
func sampleFile(t *testing.T, first, n int) *trainset.TrainData {
	t.Helper()

	feat := make([]float32, 0, 2*n)
	truth := make([]float32, 0, n)
	weights := make([]float32, 0, n)
	for i := 0; i < n; i++ {
		id := float32(first + i)
		feat = append(feat, id, id*id)
		truth = append(truth, 2*id)
		weights = append(weights, 1)
	}
	f, err := trainset.NewArray([]int{n, 2}, feat)
	require.NoError(t, err)
	tr, err := trainset.NewArray([]int{n, 1}, truth)
	require.NoError(t, err)
	w, err := trainset.NewArray([]int{n, 1}, weights)
	require.NoError(t, err)
	td, err := trainset.New([]*trainset.Array{f}, []*trainset.Array{tr}, []*trainset.Array{w})
	require.NoError(t, err)
	return td
}

// writeDataset writes one file per entry of sizes and returns the paths.
func writeDataset(t *testing.T, dir string, sizes ...int) []string {
	t.Helper()

	var files []string
	first := 0
	for i, n := range sizes {
		path := filepath.Join(dir, fmt.Sprintf("part-%02d.bftd", i))
		require.NoError(t, sampleFile(t, first, n).WriteToFile(path))
		files = append(files, path)
		first += n
	}
	return files
}

func newGenerator(t *testing.T, cfg generator.Config) *generator.Generator[*trainset.TrainData] {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	gen, err := generator.New(func() *trainset.TrainData { return &trainset.TrainData{} }, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = gen.Close() })
	return gen
}

func fastConfig(batchSize int) generator.Config {
	cfg := generator.DefaultConfig()
	cfg.BatchSize = batchSize
	cfg.RetryInterval = 10 * time.Millisecond
	return cfg
}

// sampleIDs returns the id column of a batch and checks row consistency.
func sampleIDs(t *testing.T, batch *trainset.TrainData) []int {
	t.Helper()

	n := batch.NElements()
	ids := make([]int, n)
	for i := 0; i < n; i++ {
		id := batch.Features[0].Data[2*i]
		require.Equal(t, id*id, batch.Features[0].Data[2*i+1], "feature row %d", i)
		require.Equal(t, 2*id, batch.Truth[0].Data[i], "truth row %d", i)
		ids[i] = int(id)
	}
	return ids
}
