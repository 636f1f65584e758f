package serializer

import (
	"github.com/vnykmshr/rcache-go/pkg/compression"
)

// Compressed frames the payload of another strategy with
// compression.Pack. Payloads below MinSize are stored uncompressed.
type Compressed struct {
	Inner      Serializer
	Compressor compression.Compressor
	MinSize    int
}

// NewCompressed builds a Compressed serializer from a compression config
func NewCompressed(inner Serializer, config *compression.Config) (*Compressed, error) {
	if config == nil {
		config = compression.NewDefaultConfig()
	}

	compressor, err := compression.NewCompressor(config)
	if err != nil {
		return nil, err
	}

	return &Compressed{Inner: inner, Compressor: compressor, MinSize: config.MinSize}, nil
}

// Name combines the inner strategy and the compressor, e.g. "msgpack+gzip"
func (c *Compressed) Name() string {
	return c.Inner.Name() + "+" + c.Compressor.Name()
}

// Serialize encodes v with the inner strategy and packs the result
func (c *Compressed) Serialize(v any) ([]byte, error) {
	data, err := c.Inner.Serialize(v)
	if err != nil {
		return nil, err
	}

	frame, err := compression.Pack(data, c.Compressor, c.MinSize)
	if err != nil {
		return nil, newError(c.Name(), OpSerialize, v, err)
	}
	return frame, nil
}

// Deserialize unpacks data and decodes it with the inner strategy
func (c *Compressed) Deserialize(data []byte, target any) error {
	raw, err := compression.Unpack(data, c.Compressor)
	if err != nil {
		return newError(c.Name(), OpDeserialize, target, err)
	}
	return c.Inner.Deserialize(raw, target)
}

var _ Serializer = (*Compressed)(nil)
