package config

import (
	"encoding/json"

	"github.com/Jelikton/iptv-checker/pkg/bytesize"
)

// ByteSize is a configuration size such as "75MB" or a raw byte count.
type ByteSize int64

// UnmarshalText implements encoding.TextUnmarshaler for Viper/YAML support.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := bytesize.Parse(string(text))
	if err != nil {
		return err
	}
	*b = ByteSize(size)
	return nil
}

// UnmarshalJSON accepts both "75MB" and 78643200.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*b = ByteSize(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 {
	return int64(b)
}

func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}
