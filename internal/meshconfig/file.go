package meshconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
)

// configFileMode keeps the session key readable by the owner only.
const configFileMode = 0o600

var errNullDocument = errors.New("document is null")

// Load reads config.json, tolerating the comments and trailing commas
// operators leave behind when editing by hand. A missing file is returned
// as an fs.ErrNotExist error; anything unparsable is a *ParseError.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes a config document. path is used for error reporting only.
func Parse(path string, data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if doc.Extra == nil {
		return nil, &ParseError{Path: path, Err: errNullDocument}
	}
	return &doc, nil
}

// Save writes the document atomically (temp file + rename).
func (d *Document) Save(path string) error {
	data, err := d.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, configFileMode); err != nil {
		return fmt.Errorf("failed to write temp config: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename config: %w", err)
	}
	return nil
}
