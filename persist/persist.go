// Package persist implements the on-disk record container shared by the index
// sidecar and the embedding model blob.
//
// A record is self-describing: a fixed magic, a format version, the codec name
// used for the payload, the compression type, and a single compressed block.
// The payload layout inside the block is owned by the caller.
package persist

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/renameio"

	"github.com/clusterkit/clusterkit/codec"
)

// Record container versioning. Bump on layout changes; old versions fail
// cleanly instead of misdecoding.
const (
	recordVersion = 1
)

var magic = [4]byte{'C', 'K', 'R', '1'}

// ErrBadRecord indicates a record that cannot be parsed (wrong magic, version,
// codec, or corrupt block).
type ErrBadRecord struct {
	Reason string
	cause  error
}

func (e *ErrBadRecord) Error() string {
	return fmt.Sprintf("bad record: %s", e.Reason)
}

func (e *ErrBadRecord) Unwrap() error { return e.cause }

// Options configures record encoding.
type Options struct {
	// Codec encodes the payload value. Defaults to codec.Default (gob).
	Codec codec.Codec

	// Compression selects the block compression. Defaults to ZSTD.
	Compression CompressionType
}

// DefaultOptions are the record encoding defaults.
var DefaultOptions = Options{
	Codec:       nil, // resolved to codec.Default
	Compression: CompressionZSTD,
}

// Marshal encodes v into a self-describing record.
func Marshal(v any, optFns ...func(o *Options)) ([]byte, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	c := opts.Codec
	if c == nil {
		c = codec.Default
	}

	payload, err := c.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	block, err := compressBlock(payload, opts.Compression)
	if err != nil {
		return nil, fmt.Errorf("compress payload: %w", err)
	}

	name := c.Name()
	// magic + version + compression + name length + name + block
	out := make([]byte, 0, len(magic)+2+1+len(name)+len(block))
	out = append(out, magic[:]...)
	out = append(out, recordVersion, byte(opts.Compression))
	out = append(out, byte(len(name)))
	out = append(out, name...)
	out = append(out, block...)
	return out, nil
}

// Unmarshal decodes a record produced by Marshal into v.
func Unmarshal(data []byte, v any) error {
	if len(data) < len(magic)+3 {
		return &ErrBadRecord{Reason: "record too small"}
	}
	if [4]byte(data[:4]) != magic {
		return &ErrBadRecord{Reason: "bad magic"}
	}

	version := data[4]
	if version != recordVersion {
		return &ErrBadRecord{Reason: fmt.Sprintf("unsupported record version %d", version)}
	}

	compression := CompressionType(data[5])
	nameLen := int(data[6])
	rest := data[7:]
	if len(rest) < nameLen {
		return &ErrBadRecord{Reason: "truncated codec name"}
	}

	c, ok := codec.ByName(string(rest[:nameLen]))
	if !ok {
		return &ErrBadRecord{Reason: fmt.Sprintf("unknown codec %q", rest[:nameLen])}
	}

	payload, err := decompressBlock(rest[nameLen:], compression)
	if err != nil {
		return &ErrBadRecord{Reason: "decompress payload", cause: err}
	}

	if err := c.Unmarshal(payload, v); err != nil {
		return &ErrBadRecord{Reason: "decode payload", cause: err}
	}

	return nil
}

// WriteFile encodes v and writes it to path atomically.
func WriteFile(path string, v any, optFns ...func(o *Options)) error {
	data, err := Marshal(v, optFns...)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, data, 0o644)
}

// ReadFile reads a record from path and decodes it into v.
//
// A missing file is reported as-is so callers can distinguish absent artifacts
// (os.ErrNotExist) from corrupt ones (ErrBadRecord).
func ReadFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Unmarshal(data, v); err != nil {
		var bad *ErrBadRecord
		if errors.As(err, &bad) {
			return err
		}
		return &ErrBadRecord{Reason: "decode", cause: err}
	}
	return nil
}
