package trainset

// ============================================================================
// Trainset Error Definitions
// Purpose: Errors raised while reading, writing and combining sample files
// ============================================================================

import (
	"errors"
	"fmt"
)

// Predefined errors
var (
	// ErrCorruptedFile indicates the file cannot be parsed (bad header or payload)
	ErrCorruptedFile = errors.New("trainset: file is corrupted")

	// ErrChecksumMismatch indicates the payload checksum does not match the header
	ErrChecksumMismatch = errors.New("trainset: checksum mismatch")

	// ErrBadMagic indicates the file is not a trainset file
	ErrBadMagic = errors.New("trainset: not a trainset file")

	// ErrUnsupportedVersion indicates a format version this build cannot read
	ErrUnsupportedVersion = errors.New("trainset: unsupported format version")

	// ErrShapeMismatch indicates arrays that cannot be combined or disagree on sample count
	ErrShapeMismatch = errors.New("trainset: shape mismatch")
)

// CorruptionError describes where a file failed to decode.
// A CorruptionError is usually transient on network storage (partially
// written or partially synced files), so readers may retry.
type CorruptionError struct {
	Path   string // file path
	Offset int64  // byte offset of the failing section
	Err    error  // underlying error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("trainset: %s corrupted at offset %d: %v", e.Path, e.Offset, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}
