package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ChuLiYu/batchfeed/internal/feed"
	"github.com/ChuLiYu/batchfeed/internal/generator"
	"github.com/ChuLiYu/batchfeed/internal/trainset"
)

const (
	numFiles       = 6
	samplesPerFile = 50
	batchSize      = 16
	epochs         = 2
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run cmd/demo/main.go <start|late>")
		os.Exit(1)
	}
	mode := os.Args[1]

	dir, err := os.MkdirTemp("", "batchfeed-demo-")
	if err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	defer os.RemoveAll(dir)

	files, err := writeSynthetic(dir)
	if err != nil {
		log.Fatalf("Failed to write synthetic files: %v", err)
	}
	fmt.Printf("✓ Wrote %d files of %d samples to %s\n", len(files), samplesPerFile, dir)

	cfg := generator.DefaultConfig()
	cfg.BatchSize = batchSize
	cfg.FileTimeout = 5
	cfg.RetryInterval = 200 * time.Millisecond
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	gen, err := generator.New(func() *trainset.TrainData { return &trainset.TrainData{} }, cfg)
	if err != nil {
		log.Fatalf("Failed to create generator: %v", err)
	}
	defer gen.Close()

	if err := gen.SetFileList(files); err != nil {
		log.Fatalf("Failed to set file list: %v", err)
	}
	fmt.Printf("✓ Generator configured: %d samples, %d batches of %d per epoch\n",
		gen.NTotal(), gen.NBatches(), gen.BatchSize())

	if mode == "late" {
		// hide one file; the reader keeps retrying until it comes back
		late := files[len(files)-1]
		hidden := late + ".hidden"
		if err := os.Rename(late, hidden); err != nil {
			log.Fatalf("Failed to hide %s: %v", late, err)
		}
		fmt.Printf("\n⚠️  %s is missing, it will appear in 600ms\n", filepath.Base(late))
		go func() {
			time.Sleep(600 * time.Millisecond)
			os.Rename(hidden, late)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ds := feed.NewDataset("demo", gen)
	for e := 1; e <= epochs; e++ {
		if e > 1 {
			ds.Reset()
		}
		start := time.Now()
		batches := 0
		for {
			select {
			case <-sigChan:
				fmt.Println("\n\nReceived shutdown signal, stopping gracefully...")
				return
			default:
			}

			_, inputs, labels, err := ds.Yield()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				log.Fatalf("Epoch %d failed: %v", e, err)
			}
			batches++
			if batches == 1 {
				fmt.Printf("\n📊 Epoch %d order: %v\n", e, baseNames(gen.Files()))
				fmt.Printf("  First batch: inputs %v, labels %v\n",
					inputs[0].Shape().Dimensions, labels[0].Shape().Dimensions)
			}
		}
		fmt.Printf("  Batches: %d  Samples: %d  Last batch: %v  Time: %s\n",
			batches, gen.ProcessedSamples(), gen.LastBatch(), time.Since(start).Round(time.Millisecond))
	}

	fmt.Println("\n✓ Done")
}

// writeSynthetic writes numFiles files of a noisy linear problem.
func writeSynthetic(dir string) ([]string, error) {
	rng := rand.New(rand.NewSource(42))
	var files []string
	for i := 0; i < numFiles; i++ {
		feat := make([]float32, 0, samplesPerFile*2)
		truth := make([]float32, 0, samplesPerFile)
		for j := 0; j < samplesPerFile; j++ {
			x, y := rng.Float32(), rng.Float32()
			feat = append(feat, x, y)
			truth = append(truth, 3*x-2*y+0.1*float32(rng.NormFloat64()))
		}
		f, err := trainset.NewArray([]int{samplesPerFile, 2}, feat)
		if err != nil {
			return nil, err
		}
		t, err := trainset.NewArray([]int{samplesPerFile, 1}, truth)
		if err != nil {
			return nil, err
		}
		td, err := trainset.New([]*trainset.Array{f}, []*trainset.Array{t}, nil)
		if err != nil {
			return nil, err
		}

		path := filepath.Join(dir, fmt.Sprintf("part-%02d.bftd", i))
		if err := td.WriteToFile(path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	return out
}
