package trainset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ChuLiYu/batchfeed/pkg/types"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, dir, name string, td *TrainData) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, td.WriteToFile(path))
	return path
}

func TestWriteAndReadFile(t *testing.T) {
	dir := t.TempDir()
	src := makeData(t, 10, 4)
	path := writeTestFile(t, dir, "a.bftd", src)

	var td TrainData
	require.NoError(t, td.ReadFromFile(path))

	assert.Equal(t, 4, td.NElements())
	assert.Equal(t, src.Features[0].Data, td.Features[0].Data)
	assert.Equal(t, src.Truth[0].Data, td.Truth[0].Data)
	assert.Equal(t, src.Weights[0].Data, td.Weights[0].Data)

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestReadShapesOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.bftd", makeData(t, 0, 7))

	shapes, err := ReadShapes(path)
	require.NoError(t, err)

	n, ok := shapes.SampleCount()
	assert.True(t, ok)
	assert.Equal(t, 7, n)
	assert.Equal(t, []types.Shape{{7, 2}}, shapes.Features)
	assert.Equal(t, []types.Shape{{7, 1}}, shapes.Truth)

	var td TrainData
	fromMethod, err := td.ReadShapesFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, shapes, fromMethod)
	assert.Equal(t, 0, td.NElements())
}

func TestReadMissingFile(t *testing.T) {
	var td TrainData
	err := td.ReadFromFile(filepath.Join(t.TempDir(), "missing.bftd"))
	assert.True(t, os.IsNotExist(err))
}

func TestReadTruncatedPayload(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.bftd", makeData(t, 0, 50))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-3], 0644))

	td := makeData(t, 0, 1)
	err = td.ReadFromFile(path)

	var corrupt *CorruptionError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)
	assert.ErrorIs(t, err, ErrCorruptedFile)
	assert.Equal(t, 1, td.NElements(), "failed read must leave the container unchanged")

	// header is still readable
	_, err = ReadShapes(path)
	assert.NoError(t, err)
}

func TestReadChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.bftd", makeData(t, 0, 20))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0644))

	var td TrainData
	err = td.ReadFromFile(path)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestReadBadHeader(t *testing.T) {
	dir := t.TempDir()

	noNewline := filepath.Join(dir, "partial.bftd")
	require.NoError(t, os.WriteFile(noNewline, []byte(`{"magic":"BFTD"`), 0644))
	_, err := ReadShapes(noNewline)
	assert.ErrorIs(t, err, ErrCorruptedFile)

	wrongMagic := filepath.Join(dir, "magic.bftd")
	require.NoError(t, os.WriteFile(wrongMagic, []byte("{\"magic\":\"NOPE\",\"version\":1}\n"), 0644))
	_, err = ReadShapes(wrongMagic)
	assert.ErrorIs(t, err, ErrBadMagic)

	wrongVersion := filepath.Join(dir, "version.bftd")
	require.NoError(t, os.WriteFile(wrongVersion, []byte("{\"magic\":\"BFTD\",\"version\":7}\n"), 0644))
	_, err = ReadShapes(wrongVersion)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestHeaderIsSingleJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFile(t, dir, "a.bftd", makeData(t, 0, 3))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line, _, found := bytes.Cut(data, []byte("\n"))
	require.True(t, found)
	assert.Contains(t, string(line), `"magic":"BFTD"`)
	assert.Contains(t, string(line), `"features":[[3,2]]`)
}

func TestWriteRejectsInvalidData(t *testing.T) {
	f, _ := NewArray([]int{2, 1}, []float32{1, 2})
	tr, _ := NewArray([]int{1, 1}, []float32{1})
	td := &TrainData{Features: []*Array{f}, Truth: []*Array{tr}}

	err := td.WriteToFile(filepath.Join(t.TempDir(), "bad.bftd"))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestZstdCodecConstruction(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotNil(t, mustEncoder(zstd.WithEncoderLevel(zstd.SpeedFastest)))
		assert.NotNil(t, mustDecoder())
	})
	assert.Panics(t, func() { mustEncoder(zstd.WithEncoderLevel(zstd.EncoderLevel(0))) })
	assert.Panics(t, func() { mustDecoder(zstd.WithDecoderMaxMemory(0)) })
}

func TestFromCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plays.csv")
	content := "X,y,dir,ball_land_x,w\n" +
		"1,2,3,101,0.5\n" +
		"4,5,6,104,1\n" +
		"7,8,9,107,2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	td, err := FromCSV(path, CSVLayout{
		Features: []string{"x", "y", "dir"},
		Truth:    []string{"ball_land_x"},
		Weight:   "w",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, td.NElements())
	assert.Equal(t, types.Shape{3, 3}, td.Features[0].Shape)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, td.Features[0].Data)
	assert.Equal(t, []float32{101, 104, 107}, td.Truth[0].Data)
	assert.Equal(t, []float32{0.5, 1, 2}, td.Weights[0].Data)
}

func TestFromCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("x,y\n1,2\n"), 0644))

	_, err := FromCSV(path, CSVLayout{Features: []string{"x", "z"}})
	assert.Error(t, err)
}

func TestFromCSVBadValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("x\n1\n\n2\nabc\n"), 0644))

	_, err := FromCSV(path, CSVLayout{Features: []string{"x"}})
	assert.Error(t, err)
}
