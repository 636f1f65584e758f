package compression

import (
	"bytes"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
)

// Frame markers written as the first byte of every packed payload
const (
	frameRaw        byte = 0x00
	frameCompressed byte = 0x01
)

// ErrInvalidFrame is returned by Unpack when the payload has no valid frame header
var ErrInvalidFrame = errors.New("compression: invalid frame")

// Compressor defines the interface for payload compression
type Compressor interface {
	// Compress compresses the given data and returns compressed bytes
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses the given compressed bytes
	Decompress(compressed []byte) ([]byte, error)

	// Name returns the name/identifier of the compressor
	Name() string
}

// CompressorType represents different compression algorithms
type CompressorType string

const (
	CompressorNone    CompressorType = "none"
	CompressorGzip    CompressorType = "gzip"
	CompressorDeflate CompressorType = "deflate"
)

// Config holds compression configuration
type Config struct {
	// Algorithm specifies which compression algorithm to use
	Algorithm CompressorType

	// MinSize is the minimum payload size in bytes before compression is applied.
	// Smaller payloads are stored raw to avoid overhead.
	MinSize int

	// Level is the compression level (1-9 for gzip/deflate, -1 for default)
	Level int
}

// NewDefaultConfig creates a default compression configuration
func NewDefaultConfig() *Config {
	return &Config{
		Algorithm: CompressorGzip,
		MinSize:   1024,
		Level:     -1,
	}
}

// WithAlgorithm sets the compression algorithm
func (c *Config) WithAlgorithm(algorithm CompressorType) *Config {
	c.Algorithm = algorithm
	return c
}

// WithMinSize sets the minimum size threshold for compression
func (c *Config) WithMinSize(minSize int) *Config {
	c.MinSize = minSize
	return c
}

// WithLevel sets the compression level
func (c *Config) WithLevel(level int) *Config {
	c.Level = level
	return c
}

// NoOpCompressor returns data unchanged
type NoOpCompressor struct{}

// NewNoOpCompressor creates a new no-op compressor
func NewNoOpCompressor() *NoOpCompressor {
	return &NoOpCompressor{}
}

// Compress returns the data unchanged
func (n *NoOpCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

// Decompress returns the data unchanged
func (n *NoOpCompressor) Decompress(compressed []byte) ([]byte, error) {
	return compressed, nil
}

// Name returns the compressor name
func (n *NoOpCompressor) Name() string {
	return string(CompressorNone)
}

// GzipCompressor implements compression using gzip
type GzipCompressor struct {
	level int
}

// NewGzipCompressor creates a new gzip compressor with the specified level
func NewGzipCompressor(level int) *GzipCompressor {
	return &GzipCompressor{level: level}
}

// Compress compresses data using gzip
func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses gzip data
func (g *GzipCompressor) Decompress(compressed []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer reader.Close()

	return readAll(reader)
}

// Name returns the compressor name
func (g *GzipCompressor) Name() string {
	return string(CompressorGzip)
}

// DeflateCompressor implements compression using zlib/deflate
type DeflateCompressor struct {
	level int
}

// NewDeflateCompressor creates a new deflate compressor with the specified level
func NewDeflateCompressor(level int) *DeflateCompressor {
	return &DeflateCompressor{level: level}
}

// Compress compresses data using deflate
func (d *DeflateCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	writer, err := zlib.NewWriterLevel(&buf, d.level)
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate writer: %w", err)
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write compressed data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close deflate writer: %w", err)
	}

	return buf.Bytes(), nil
}

// Decompress decompresses deflate data
func (d *DeflateCompressor) Decompress(compressed []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("failed to create deflate reader: %w", err)
	}
	defer reader.Close()

	return readAll(reader)
}

// Name returns the compressor name
func (d *DeflateCompressor) Name() string {
	return string(CompressorDeflate)
}

func readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed data: %w", err)
	}
	return data, nil
}

// NewCompressor creates a new compressor based on the configuration
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		return NewNoOpCompressor(), nil
	}

	switch config.Algorithm {
	case CompressorNone, "":
		return NewNoOpCompressor(), nil
	case CompressorGzip:
		return NewGzipCompressor(config.Level), nil
	case CompressorDeflate:
		return NewDeflateCompressor(config.Level), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

// Pack frames data for storage. Data shorter than minSize, or data that does
// not shrink, is stored raw behind a one-byte header.
func Pack(data []byte, compressor Compressor, minSize int) ([]byte, error) {
	if len(data) >= minSize {
		compressed, err := compressor.Compress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to compress data: %w", err)
		}
		if len(compressed) < len(data) {
			return append([]byte{frameCompressed}, compressed...), nil
		}
	}

	return append([]byte{frameRaw}, data...), nil
}

// Unpack reverses Pack
func Unpack(frame []byte, compressor Compressor) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrInvalidFrame
	}

	switch frame[0] {
	case frameRaw:
		return frame[1:], nil
	case frameCompressed:
		data, err := compressor.Decompress(frame[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to decompress data: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: unknown header 0x%02x", ErrInvalidFrame, frame[0])
	}
}

// Ensure interfaces are implemented
var (
	_ Compressor = (*NoOpCompressor)(nil)
	_ Compressor = (*GzipCompressor)(nil)
	_ Compressor = (*DeflateCompressor)(nil)
)
