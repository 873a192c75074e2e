package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// loadToolsets resolves every toolset reference against the schema's library
// directory and returns the filtered tools, each tagged with its toolset
// source.
func loadToolsets(s *Schema, schemaDir string) ([]Tool, error) {
	libDir := s.LibraryDir
	if !filepath.IsAbs(libDir) {
		libDir = filepath.Join(schemaDir, libDir)
	}

	info, err := os.Stat(libDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("library directory not found: %s", libDir)
		}
		return nil, fmt.Errorf("failed to stat library directory %s: %w", libDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library path is not a directory: %s", libDir)
	}

	var all []Tool
	for _, ts := range s.Toolsets {
		file, err := loadToolsetFile(ts.Name, libDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load toolset %q: %w", ts.Name, err)
		}

		tools := file.Tools
		if ts.Filter != "" {
			tools, err = applyToolsetFilter(tools, ts.Filter, ts.FilterValue)
			if err != nil {
				return nil, fmt.Errorf("toolset %q: %w", ts.Name, err)
			}
		}

		for i := range tools {
			tools[i].ToolsetSource = ts.Name
		}

		log.Debug().
			Str("toolset", ts.Name).
			Int("tools", len(tools)).
			Msg("Toolset loaded")

		all = append(all, tools...)
	}

	return all, nil
}

// loadToolsetFile locates a toolset by name: a directory of *.mci.json files
// (all merged), an exact file name, or the name with a .mci.json, .mci.yaml,
// or .mci.yml extension appended.
func loadToolsetFile(name string, libDir string) (*ToolsetFile, error) {
	dirPath := filepath.Join(libDir, name)
	if info, err := os.Stat(dirPath); err == nil && info.IsDir() {
		return mergeToolsetDir(dirPath)
	}

	candidates := []string{
		filepath.Join(libDir, name),
		filepath.Join(libDir, name+".mci.json"),
		filepath.Join(libDir, name+".mci.yaml"),
		filepath.Join(libDir, name+".mci.yml"),
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return parseToolsetFile(candidate)
		}
	}

	return nil, fmt.Errorf("toolset not found: looked for a directory, file, or file with .mci.json/.mci.yaml/.mci.yml extension in %s", libDir)
}

// mergeToolsetDir merges every *.mci.json file in a toolset directory. All
// files must agree on schemaVersion.
func mergeToolsetDir(dir string) (*ToolsetFile, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.mci.json"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .mci.json files found in toolset directory %s", dir)
	}

	merged := &ToolsetFile{}
	for _, file := range files {
		f, err := parseToolsetFile(file)
		if err != nil {
			return nil, err
		}
		if merged.SchemaVersion == "" {
			merged.SchemaVersion = f.SchemaVersion
		} else if f.SchemaVersion != merged.SchemaVersion {
			return nil, fmt.Errorf("schema version mismatch in toolset directory %s: %s has %q, expected %q",
				dir, filepath.Base(file), f.SchemaVersion, merged.SchemaVersion)
		}
		merged.Tools = append(merged.Tools, f.Tools...)
	}

	return merged, nil
}

func parseToolsetFile(path string) (*ToolsetFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read toolset file %s: %w", path, err)
	}

	jsonData, err := toJSON(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse toolset file %s: %w", path, err)
	}

	var f ToolsetFile
	if err := json.Unmarshal(jsonData, &f); err != nil {
		return nil, fmt.Errorf("failed to parse toolset file %s: %w", path, err)
	}
	if f.SchemaVersion == "" {
		return nil, fmt.Errorf("toolset file %s missing required field 'schemaVersion'", path)
	}
	if err := validateVersion(f.SchemaVersion); err != nil {
		return nil, fmt.Errorf("toolset file %s: %w", path, err)
	}
	if f.Tools == nil {
		return nil, fmt.Errorf("toolset file %s missing required field 'tools'", path)
	}
	for i := range f.Tools {
		if err := validateTool(&f.Tools[i], i); err != nil {
			return nil, fmt.Errorf("toolset file %s: %w", path, err)
		}
	}

	return &f, nil
}

// applyToolsetFilter filters toolset tools by name or tag.
func applyToolsetFilter(tools []Tool, filter, filterValue string) ([]Tool, error) {
	values := map[string]bool{}
	for _, v := range strings.Split(filterValue, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values[v] = true
		}
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("filter value cannot be empty for filter type %q", filter)
	}

	var out []Tool
	switch filter {
	case "only":
		for _, t := range tools {
			if values[t.Name] {
				out = append(out, t)
			}
		}
	case "except":
		for _, t := range tools {
			if !values[t.Name] {
				out = append(out, t)
			}
		}
	case "tags":
		for _, t := range tools {
			if hasAnyTag(t.Tags, values) {
				out = append(out, t)
			}
		}
	case "withoutTags":
		for _, t := range tools {
			if !hasAnyTag(t.Tags, values) {
				out = append(out, t)
			}
		}
	default:
		return nil, fmt.Errorf("invalid filter type %q, valid types: only, except, tags, withoutTags", filter)
	}

	return out, nil
}

func hasAnyTag(tags []string, values map[string]bool) bool {
	for _, tag := range tags {
		if values[tag] {
			return true
		}
	}
	return false
}
