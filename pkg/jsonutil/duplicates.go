package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DuplicateKeyError reports an object key that appears more than once.
type DuplicateKeyError struct {
	Path string // dotted path of the enclosing object, "" for the root
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("duplicate key %q", e.Key)
	}
	return fmt.Sprintf("duplicate key %q in %s", e.Key, e.Path)
}

// CheckDuplicateKeys walks a JSON document and returns a *DuplicateKeyError for the
// first object that repeats a key. encoding/json silently keeps the last value,
// which would let a repeated whitelist entry override an earlier one unnoticed.
func CheckDuplicateKeys(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := walkValue(dec, nil); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected trailing data after JSON document")
	}
	return nil
}

func walkValue(dec *json.Decoder, path []string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{':
		seen := make(map[string]struct{})
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := keyTok.(string)
			if !ok {
				return fmt.Errorf("expected object key, got %v", keyTok)
			}
			if _, dup := seen[key]; dup {
				return &DuplicateKeyError{Path: strings.Join(path, "."), Key: key}
			}
			seen[key] = struct{}{}
			if err := walkValue(dec, append(path, key)); err != nil {
				return err
			}
		}
	case '[':
		for i := 0; dec.More(); i++ {
			if err := walkValue(dec, append(path, fmt.Sprintf("[%d]", i))); err != nil {
				return err
			}
		}
	}
	// consume the closing delimiter
	_, err = dec.Token()
	return err
}
