package trainset

// ============================================================================
// Trainset file format
//
// Layout:
//   line 1   JSON header terminated by '\n'
//            {"magic":"BFTD","version":1,"features":[[n,...]],"truth":[...],
//             "weights":[...],"payload_size":N,"checksum":C}
//   rest     zstd-compressed payload of N bytes; decompressed it is the
//            little-endian float32 values of every array, features first,
//            then truth, then weights, each row-major
//
// checksum is CRC32-IEEE over the compressed payload. Reading only the header
// is enough to learn the sample count, so ReadShapes never touches the payload.
//
// Files are written atomically (temp file + rename) so a reader sees either
// the previous content or the complete new one.
// ============================================================================

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/ChuLiYu/batchfeed/pkg/types"
	"github.com/klauspost/compress/zstd"
)

const (
	// Magic identifies trainset files.
	Magic = "BFTD"
	// FormatVersion is the only version this package reads and writes.
	FormatVersion = 1
)

var _ types.Container[*TrainData] = (*TrainData)(nil)

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	encoder = mustEncoder(zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder = mustDecoder()
)

func mustEncoder(opts ...zstd.EOption) *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, opts...)
	if err != nil {
		panic(fmt.Sprintf("trainset: zstd encoder: %v", err))
	}
	return enc
}

func mustDecoder(opts ...zstd.DOption) *zstd.Decoder {
	dec, err := zstd.NewReader(nil, opts...)
	if err != nil {
		panic(fmt.Sprintf("trainset: zstd decoder: %v", err))
	}
	return dec
}

type fileHeader struct {
	Magic       string        `json:"magic"`
	Version     int           `json:"version"`
	Features    []types.Shape `json:"features"`
	Truth       []types.Shape `json:"truth"`
	Weights     []types.Shape `json:"weights"`
	PayloadSize int64         `json:"payload_size"`
	Checksum    uint32        `json:"checksum"`
}

func (h fileHeader) shapes() types.Shapes {
	return types.Shapes{Features: h.Features, Truth: h.Truth, Weights: h.Weights}
}

// ReadShapes returns the shape metadata of the file at path.
func ReadShapes(path string) (types.Shapes, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.Shapes{}, err
	}
	defer f.Close()

	h, _, err := readHeader(bufio.NewReader(f), path)
	if err != nil {
		return types.Shapes{}, err
	}
	return h.shapes(), nil
}

// ReadShapesFromFile implements types.Container. The receiver is not modified.
func (td *TrainData) ReadShapesFromFile(path string) (types.Shapes, error) {
	return ReadShapes(path)
}

// ReadFromFile replaces the contents of td with the samples in path.
// On error td is left unchanged.
func (td *TrainData) ReadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, offset, err := readHeader(r, path)
	if err != nil {
		return err
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return &CorruptionError{Path: path, Offset: offset, Err: err}
	}
	if int64(len(payload)) != h.PayloadSize {
		return &CorruptionError{Path: path, Offset: offset,
			Err: fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorruptedFile, len(payload), h.PayloadSize)}
	}
	if sum := crc32.ChecksumIEEE(payload); sum != h.Checksum {
		return &CorruptionError{Path: path, Offset: offset,
			Err: fmt.Errorf("%w (expected=0x%08x, got=0x%08x)", ErrChecksumMismatch, h.Checksum, sum)}
	}

	raw, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return &CorruptionError{Path: path, Offset: offset, Err: fmt.Errorf("%w: %v", ErrCorruptedFile, err)}
	}
	if len(raw)%4 != 0 {
		return &CorruptionError{Path: path, Offset: offset,
			Err: fmt.Errorf("%w: payload is not a float32 sequence", ErrCorruptedFile)}
	}

	values := decodeFloats(raw)
	next := &TrainData{}
	pos := 0
	for g, shapes := range [3][]types.Shape{h.Features, h.Truth, h.Weights} {
		arrays := make([]*Array, 0, len(shapes))
		for _, shape := range shapes {
			size, err := shapeSize(shape)
			if err != nil {
				return &CorruptionError{Path: path, Offset: 0, Err: err}
			}
			if pos+size > len(values) {
				return &CorruptionError{Path: path, Offset: offset,
					Err: fmt.Errorf("%w: payload holds %d values, shapes need more", ErrCorruptedFile, len(values))}
			}
			arrays = append(arrays, &Array{
				Shape: append(types.Shape(nil), shape...),
				Data:  values[pos : pos+size : pos+size],
			})
			pos += size
		}
		switch g {
		case 0:
			next.Features = arrays
		case 1:
			next.Truth = arrays
		case 2:
			next.Weights = arrays
		}
	}
	if pos != len(values) {
		return &CorruptionError{Path: path, Offset: offset,
			Err: fmt.Errorf("%w: %d trailing values", ErrCorruptedFile, len(values)-pos)}
	}
	if err := next.validate(); err != nil {
		return &CorruptionError{Path: path, Offset: 0, Err: err}
	}

	*td = *next
	return nil
}

// WriteToFile stores td at path atomically.
func (td *TrainData) WriteToFile(path string) error {
	if err := td.validate(); err != nil {
		return err
	}

	var raw []byte
	for _, group := range td.groups() {
		for _, a := range group {
			raw = appendFloats(raw, a.Data)
		}
	}
	payload := encoder.EncodeAll(raw, nil)

	shapes := td.Shapes()
	header, err := json.Marshal(fileHeader{
		Magic:       Magic,
		Version:     FormatVersion,
		Features:    shapes.Features,
		Truth:       shapes.Truth,
		Weights:     shapes.Weights,
		PayloadSize: int64(len(payload)),
		Checksum:    crc32.ChecksumIEEE(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	buf := make([]byte, 0, len(header)+1+len(payload))
	buf = append(buf, header...)
	buf = append(buf, '\n')
	buf = append(buf, payload...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", tmpPath, err)
	}
	return nil
}

// readHeader parses the header line and returns it with the payload offset.
func readHeader(r *bufio.Reader, path string) (fileHeader, int64, error) {
	var h fileHeader

	line, err := r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			err = fmt.Errorf("%w: header not terminated", ErrCorruptedFile)
		}
		return h, 0, &CorruptionError{Path: path, Offset: 0, Err: err}
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, 0, &CorruptionError{Path: path, Offset: 0, Err: fmt.Errorf("%w: %v", ErrCorruptedFile, err)}
	}
	if h.Magic != Magic {
		return h, 0, &CorruptionError{Path: path, Offset: 0, Err: ErrBadMagic}
	}
	if h.Version != FormatVersion {
		return h, 0, &CorruptionError{Path: path, Offset: 0,
			Err: fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, h.Version, FormatVersion)}
	}
	return h, int64(len(line)), nil
}

func appendFloats(dst []byte, values []float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

func decodeFloats(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}
