package codec

import (
	"encoding/json"

	"github.com/golang/snappy"
)

// EncodeEntry serializes v as snappy-compressed JSON. Journal values are
// small and repetitive, so snappy's block format is a good trade between
// write amplification and CPU.
func EncodeEntry(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

// DecodeEntry deserializes a snappy-compressed JSON value into v.
func DecodeEntry(data []byte, v any) error {
	decoded, err := snappy.Decode(nil, data)
	if err != nil {
		return err
	}
	return json.Unmarshal(decoded, v)
}
