// Package jsonx provides high-performance JSON serialization using Sonic.
// It is a drop-in replacement for encoding/json on the hot paths that
// serialize mappings and sample documents into agent prompt parameters.
package jsonx

import (
	"io"

	"github.com/bytedance/sonic"
)

var config = sonic.Config{
	EscapeHTML: false,
	UseInt64:   true,
}.Froze()

// Marshal returns the JSON encoding of v using Sonic.
func Marshal(v interface{}) ([]byte, error) {
	return config.Marshal(v)
}

// Unmarshal parses the JSON-encoded data and stores the result
// in the value pointed to by v using Sonic.
func Unmarshal(data []byte, v interface{}) error {
	return config.Unmarshal(data, v)
}

// MarshalToString is like Marshal but returns the JSON as a string.
// This avoids an allocation when converting []byte to string.
func MarshalToString(v interface{}) (string, error) {
	return config.MarshalToString(v)
}

// UnmarshalFromString parses the JSON string and stores the result in v.
func UnmarshalFromString(data string, v interface{}) error {
	return config.UnmarshalFromString(data, v)
}

// NewEncoder returns a streaming encoder writing to w.
func NewEncoder(w io.Writer) sonic.Encoder {
	return config.NewEncoder(w)
}

// Valid reports whether data is a valid JSON encoding.
func Valid(data []byte) bool {
	return config.Valid(data)
}
