package codec

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Content types served by the built-in codecs.
const (
	ContentTypeBinary = "application/octet-stream"
	ContentTypeJSON   = "application/json"
	ContentTypeText   = "text/plain"
	ContentTypeYAML   = "application/x-yaml"
)

// EncodeError is returned by the built-in codecs when a value cannot be
// encoded for a content type.
type EncodeError struct {
	ContentType string
	Err         error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.ContentType, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError is returned by the built-in codecs when bytes are malformed
// for a content type.
type DecodeError struct {
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.ContentType, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Built-in codecs.
var (
	// Binary passes bytes through unchanged. It is the fallback for any
	// content type without a registered codec.
	Binary Codec = binaryCodec{}

	// JSON encodes with encoding/json; decoded values are the generic
	// map[string]any / []any / float64 / string / bool / nil forms.
	JSON Codec = jsonCodec{}

	// Text encodes strings and decodes to string, rejecting invalid UTF-8.
	Text Codec = textCodec{}

	// YAML encodes with gopkg.in/yaml.v3.
	YAML Codec = yamlCodec{}
)

type binaryCodec struct{}

func (binaryCodec) ContentType() string { return ContentTypeBinary }

func (binaryCodec) Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case []byte:
		return val, nil
	case string:
		return []byte(val), nil
	case nil:
		return []byte{}, nil
	default:
		return nil, &EncodeError{ContentType: ContentTypeBinary, Err: fmt.Errorf("cannot pass through %T as bytes", v)}
	}
}

func (binaryCodec) Decode(b []byte) (any, error) {
	return b, nil
}

type jsonCodec struct{}

func (jsonCodec) ContentType() string { return ContentTypeJSON }

func (jsonCodec) Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodeError{ContentType: ContentTypeJSON, Err: err}
	}
	return b, nil
}

func (jsonCodec) Decode(b []byte) (any, error) {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, &DecodeError{ContentType: ContentTypeJSON, Err: err}
	}
	return v, nil
}

type textCodec struct{}

func (textCodec) ContentType() string { return ContentTypeText }

func (textCodec) Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	case fmt.Stringer:
		return []byte(val.String()), nil
	default:
		return nil, &EncodeError{ContentType: ContentTypeText, Err: fmt.Errorf("cannot encode %T as text", v)}
	}
}

func (textCodec) Decode(b []byte) (any, error) {
	if !utf8.Valid(b) {
		return nil, &DecodeError{ContentType: ContentTypeText, Err: fmt.Errorf("invalid UTF-8")}
	}
	return string(b), nil
}

type yamlCodec struct{}

func (yamlCodec) ContentType() string { return ContentTypeYAML }

func (yamlCodec) Encode(v any) ([]byte, error) {
	b, err := yaml.Marshal(v)
	if err != nil {
		return nil, &EncodeError{ContentType: ContentTypeYAML, Err: err}
	}
	return b, nil
}

func (yamlCodec) Decode(b []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return nil, &DecodeError{ContentType: ContentTypeYAML, Err: err}
	}
	return v, nil
}
