// Package httputil provides HTTP body handling utilities shared by the
// platform's clients and handlers.
package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// ReadAllWithLimit reads at most limit bytes from r. The second return value
// reports whether the reader held more data than the limit.
func ReadAllWithLimit(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) > limit {
		return data[:limit], true, nil
	}
	return data, false, nil
}

// ReadAllStrict reads the full body and fails when it exceeds limit bytes.
func ReadAllStrict(r io.Reader, limit int64) ([]byte, error) {
	data, truncated, err := ReadAllWithLimit(r, limit)
	if err != nil {
		return nil, err
	}
	if truncated {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

// DecodeJSON decodes a JSON request body into target, bounding the read and
// rejecting trailing garbage.
func DecodeJSON(r io.Reader, target any, limit int64) error {
	data, err := ReadAllStrict(r, limit)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if dec.More() {
		return fmt.Errorf("unexpected trailing data in request body")
	}
	return nil
}
