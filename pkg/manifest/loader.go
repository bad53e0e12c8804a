package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads, validates and defaults a manifest from path.
//
// The format follows the extension (.yaml/.yml or .json); other extensions
// try YAML, then JSON.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("manifest file not found: %s", path)
		case errors.Is(err, os.ErrPermission):
			return nil, fmt.Errorf("permission denied reading manifest: %s", path)
		}
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a manifest from raw bytes. path is
// used only for format detection and may be empty.
//
// The raw document is schema-validated before decoding into the struct, so
// unknown fields are rejected rather than silently dropped.
func LoadFromBytes(data []byte, path string) (*Manifest, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errors.New("manifest file is empty")
	}

	format := formatOf(path)
	jsonData, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	m, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	m.ApplyDefaults()

	if err := validateSemantics(m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFromReader reads and validates a manifest from r.
func LoadFromReader(r io.Reader, path string) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return LoadFromBytes(data, path)
}

type format int

const (
	formatAuto format = iota
	formatYAML
	formatJSON
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatAuto
}

func decode(data []byte, f format) (*Manifest, error) {
	var m Manifest
	switch f {
	case formatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
	default:
		// YAML is a superset of JSON, so auto-detected JSON decodes too.
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
		}
	}
	return &m, nil
}

// toJSON normalizes the document to JSON for schema validation.
func toJSON(data []byte, f format) ([]byte, error) {
	if f == formatJSON {
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in manifest: %w", err)
		}
		return data, nil
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		if f == formatAuto {
			var j any
			if json.Unmarshal(data, &j) == nil {
				return data, nil
			}
			return nil, fmt.Errorf("failed to parse manifest (tried YAML and JSON): %w", err)
		}
		return nil, fmt.Errorf("invalid YAML in manifest: %w", err)
	}
	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert manifest to JSON: %w", err)
	}
	return out, nil
}
