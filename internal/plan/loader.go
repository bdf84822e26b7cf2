package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFromPath reads a plan file (YAML or JSON), normalizes and validates it.
// Format is detected by extension (.yaml/.yml, .json) or by content.
func LoadFromPath(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p, err := Load(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load parses a plan from bytes. ext is the file extension used as a format
// hint; when empty, content starting with '{' is read as JSON, anything else
// as YAML.
func Load(data []byte, ext string) (*Plan, error) {
	var p Plan
	if err := decode(data, strings.ToLower(ext), &p); err != nil {
		return nil, err
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid plan: %w", err)
	}
	return &p, nil
}

func decode(data []byte, ext string, p *Plan) error {
	switch ext {
	case ".yaml", ".yml":
		return decodeYAML(data, p)
	case ".json":
		return decodeJSON(data, p)
	}
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return decodeJSON(data, p)
	}
	return decodeYAML(data, p)
}

func decodeYAML(data []byte, p *Plan) error {
	if err := yaml.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse plan yaml: %w", err)
	}
	return nil
}

func decodeJSON(data []byte, p *Plan) error {
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("parse plan json: %w", err)
	}
	return nil
}
