// Package security validates filesystem paths used during tool execution.
// File reads and CLI working directories must stay inside the schema
// directory or an explicitly configured allow-list unless a tool opts out
// via enableAnyPaths.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrPathDenied indicates a path outside the schema directory and the
// configured allow-list.
var ErrPathDenied = errors.New("path access denied")

// Validator checks paths against a set of allowed directory roots. All roots
// are canonicalized at construction time; checks canonicalize the candidate
// path before containment so `..` traversal cannot escape.
type Validator struct {
	schemaDir string
	anyPaths  bool
	allowed   []string
}

// NewValidator creates a validator rooted at the schema directory. Allow-list
// entries may be absolute or relative to the schema directory.
func NewValidator(schemaDir string, allowList []string, enableAnyPaths bool) (*Validator, error) {
	canonDir, err := canonicalize(schemaDir, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve schema directory: %w", err)
	}

	allowed := []string{canonDir}
	for _, entry := range allowList {
		canon, err := canonicalize(entry, canonDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve allow-list entry %q: %w", entry, err)
		}
		allowed = append(allowed, canon)
	}

	return &Validator{
		schemaDir: canonDir,
		anyPaths:  enableAnyPaths,
		allowed:   allowed,
	}, nil
}

// IsAllowed reports whether path access is permitted.
func (v *Validator) IsAllowed(path string) bool {
	return v.Validate(path) == nil
}

// Validate returns ErrPathDenied when the path resolves outside every
// allowed root. Relative paths resolve against the schema directory.
func (v *Validator) Validate(path string) error {
	if v.anyPaths {
		return nil
	}

	canon, err := canonicalize(path, v.schemaDir)
	if err != nil {
		return fmt.Errorf("%w: cannot resolve %q: %v", ErrPathDenied, path, err)
	}

	for _, root := range v.allowed {
		if containsPath(root, canon) {
			return nil
		}
	}

	log.Warn().
		Str("path", path).
		Str("resolved", canon).
		Str("schema_dir", v.schemaDir).
		Msg("Path access denied")

	return fmt.Errorf("%w: %q is outside the schema directory and directory allow-list (set enableAnyPaths to override)", ErrPathDenied, path)
}

// MergeSettings computes the effective security settings for one tool.
// Tool-level values replace collection-level values when present: a non-nil
// enableAnyPaths always wins, and a non-nil allow-list replaces the
// collection list entirely rather than merging with it.
func MergeSettings(schemaAnyPaths bool, schemaAllowList []string, toolAnyPaths *bool, toolAllowList []string) (bool, []string) {
	anyPaths := schemaAnyPaths
	if toolAnyPaths != nil {
		anyPaths = *toolAnyPaths
	}
	allowList := schemaAllowList
	if toolAllowList != nil {
		allowList = toolAllowList
	}
	return anyPaths, allowList
}

// canonicalize produces a cleaned absolute path with symlinks resolved where
// the filesystem allows. Non-existent paths resolve through their nearest
// existing ancestor so containment checks still see the real location.
func canonicalize(path, base string) (string, error) {
	if !filepath.IsAbs(path) {
		if base == "" {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", err
			}
			path = abs
		} else {
			path = filepath.Join(base, path)
		}
	}
	path = filepath.Clean(path)

	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}

	// Resolve the deepest existing ancestor, then re-append the remainder.
	remainder := ""
	dir := path
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return path, nil
		}
		remainder = filepath.Join(filepath.Base(dir), remainder)
		dir = parent
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(resolved, remainder), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

// containsPath reports whether p equals root or lives under it.
func containsPath(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
