package trainset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVLayout selects which CSV columns go into which array.
// Column names are matched case-insensitively after trimming.
type CSVLayout struct {
	Features []string // required, one value per column per row
	Truth    []string // optional
	Weight   string   // optional single weight column
}

// FromCSV reads a CSV file with a header row into a TrainData with one
// sample per data row: a [n, len(Features)] feature array, a
// [n, len(Truth)] truth array and a [n, 1] weight array when configured.
func FromCSV(path string, layout CSVLayout) (*TrainData, error) {
	if len(layout.Features) == 0 {
		return nil, fmt.Errorf("csv layout needs at least one feature column")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	colIndex := make(map[string]int, len(header))
	for i, col := range header {
		colIndex[normalizeColumn(col)] = i
	}

	lookup := func(names []string) ([]int, error) {
		idx := make([]int, len(names))
		for i, name := range names {
			c, ok := colIndex[normalizeColumn(name)]
			if !ok {
				return nil, fmt.Errorf("required column %q not found in %s", name, path)
			}
			idx[i] = c
		}
		return idx, nil
	}

	featIdx, err := lookup(layout.Features)
	if err != nil {
		return nil, err
	}
	truthIdx, err := lookup(layout.Truth)
	if err != nil {
		return nil, err
	}
	var weightIdx []int
	if layout.Weight != "" {
		if weightIdx, err = lookup([]string{layout.Weight}); err != nil {
			return nil, err
		}
	}

	var features, truth, weights []float32
	rows := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d of %s: %w", rows+1, path, err)
		}
		if features, err = appendColumns(features, record, featIdx, header); err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", rows+1, path, err)
		}
		if truth, err = appendColumns(truth, record, truthIdx, header); err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", rows+1, path, err)
		}
		if weights, err = appendColumns(weights, record, weightIdx, header); err != nil {
			return nil, fmt.Errorf("row %d of %s: %w", rows+1, path, err)
		}
		rows++
	}

	td := &TrainData{
		Features: []*Array{{Shape: []int{rows, len(featIdx)}, Data: features}},
	}
	if len(truthIdx) > 0 {
		td.Truth = []*Array{{Shape: []int{rows, len(truthIdx)}, Data: truth}}
	}
	if len(weightIdx) > 0 {
		td.Weights = []*Array{{Shape: []int{rows, 1}, Data: weights}}
	}
	return td, nil
}

func appendColumns(dst []float32, record []string, idx []int, header []string) ([]float32, error) {
	for _, c := range idx {
		v, err := parseFloat32(record[c])
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", header[c], err)
		}
		dst = append(dst, v)
	}
	return dst, nil
}

func normalizeColumn(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func parseFloat32(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, err
	}
	return float32(v), nil
}
