package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// SupportedVersions lists the schemaVersion values this loader accepts.
var SupportedVersions = []string{"1.0"}

// ParseFile loads a tool collection from a JSON or YAML file. Toolset
// references are resolved relative to the file's directory and their tools
// merged into the returned schema.
func ParseFile(path string) (*Schema, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("schema file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to stat schema file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	s, err := ParseBytes(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	if len(s.Toolsets) > 0 {
		toolsetTools, err := loadToolsets(s, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		s.Tools = append(s.Tools, toolsetTools...)
	}

	log.Debug().
		Str("path", path).
		Int("tools", len(s.Tools)).
		Msg("Schema loaded")

	return s, nil
}

// ParseBytes parses a schema document. The extension selects the decoder:
// ".json" for JSON, ".yaml" or ".yml" for YAML.
func ParseBytes(data []byte, ext string) (*Schema, error) {
	jsonData, err := toJSON(data, ext)
	if err != nil {
		return nil, err
	}

	var s Schema
	if err := json.Unmarshal(jsonData, &s); err != nil {
		return nil, err
	}
	if err := validateSchema(&s); err != nil {
		return nil, err
	}
	if s.LibraryDir == "" {
		s.LibraryDir = "./mci"
	}
	return &s, nil
}

// toJSON normalizes the document to JSON bytes so both formats flow through
// the same typed decoding and validation.
func toJSON(data []byte, ext string) ([]byte, error) {
	switch strings.ToLower(ext) {
	case ".json":
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON document")
		}
		return data, nil
	case ".yaml", ".yml":
		var root yaml.Node
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("invalid YAML document: %w", err)
		}
		var buf bytes.Buffer
		if err := encodeYAMLNode(&buf, &root); err != nil {
			return nil, fmt.Errorf("failed to normalize YAML document: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported file extension %q, supported: .json, .yaml, .yml", ext)
	}
}

// encodeYAMLNode writes the node tree as JSON. Walking the node contents
// directly (instead of decoding into Go maps and re-marshaling) keeps mapping
// keys in document order, which order-sensitive fields like CLI flags rely on.
func encodeYAMLNode(buf *bytes.Buffer, n *yaml.Node) error {
	switch n.Kind {
	case 0: // empty document
		buf.WriteString("null")
		return nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			buf.WriteString("null")
			return nil
		}
		return encodeYAMLNode(buf, n.Content[0])
	case yaml.MappingNode:
		buf.WriteByte('{')
		for i := 0; i+1 < len(n.Content); i += 2 {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(n.Content[i].Value)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := encodeYAMLNode(buf, n.Content[i+1]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case yaml.SequenceNode:
		buf.WriteByte('[')
		for i, item := range n.Content {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeYAMLNode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case yaml.AliasNode:
		return encodeYAMLNode(buf, n.Alias)
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return err
		}
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	default:
		return fmt.Errorf("unsupported YAML node kind %d", n.Kind)
	}
}

func validateSchema(s *Schema) error {
	if s.SchemaVersion == "" {
		return fmt.Errorf("missing required field 'schemaVersion'")
	}
	if err := validateVersion(s.SchemaVersion); err != nil {
		return err
	}
	if len(s.Tools) == 0 && len(s.Toolsets) == 0 {
		return fmt.Errorf("either 'tools' or 'toolsets' must be provided")
	}
	for i := range s.Tools {
		if err := validateTool(&s.Tools[i], i); err != nil {
			return err
		}
	}
	for _, ts := range s.Toolsets {
		if ts.Name == "" {
			return fmt.Errorf("toolset missing required field 'name'")
		}
		if ts.Filter != "" && ts.FilterValue == "" {
			return fmt.Errorf("toolset %q: filter %q specified but filterValue is missing", ts.Name, ts.Filter)
		}
	}
	return nil
}

func validateVersion(version string) error {
	for _, v := range SupportedVersions {
		if version == v {
			return nil
		}
	}
	return fmt.Errorf("unsupported schema version %q, supported versions: %s",
		version, strings.Join(SupportedVersions, ", "))
}

func validateTool(t *Tool, idx int) error {
	if t.Name == "" {
		return fmt.Errorf("tool at index %d missing required field 'name'", idx)
	}
	if t.Execution.Type == "" {
		return fmt.Errorf("tool %q missing required field 'execution'", t.Name)
	}
	return nil
}
