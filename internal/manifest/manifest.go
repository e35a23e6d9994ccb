// Package manifest reads data source manifests.
//
// A manifest is a JSON or YAML document listing the files to load, either as
// a bare list or under a "sources" key:
//
//	[
//	  {"type": "file/json", "path": "data/session_2021.json"},
//	  {"type": "file/yaml", "path": "data/extra.yaml.zst", "compression": "zstd"}
//	]
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
	"gopkg.in/yaml.v3"
)

// Source types understood by rgpipe.
const (
	TypeJSON = "file/json"
	TypeYAML = "file/yaml"
)

// CompressionZstd marks a zstd-compressed source file.
const CompressionZstd = "zstd"

// Source is one data source entry.
type Source struct {
	Type        string `yaml:"type"`
	Path        string `yaml:"path"`
	Compression string `yaml:"compression,omitempty"`
}

// Compressed reports whether the source must be zstd-decompressed before decoding.
func (s Source) Compressed() bool {
	return strings.EqualFold(s.Compression, CompressionZstd) || strings.HasSuffix(s.Path, ".zst")
}

// Manifest is a parsed manifest with source paths resolved.
type Manifest struct {
	Path    string
	Sources []Source
}

type document struct {
	Sources []Source `yaml:"sources"`
}

// Load reads and parses the manifest at path. Relative source paths are
// resolved against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manifest %s: %w", path, rgpipe.ErrSourceNotFound)
		}
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	m.Path = path
	return m, nil
}

// Parse parses manifest content. baseDir anchors relative source paths.
func Parse(data []byte, baseDir string) (*Manifest, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("invalid manifest syntax: %v: %w", err, rgpipe.ErrInvalidConfig)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("manifest lists no data sources: %w", rgpipe.ErrInvalidConfig)
	}

	var sources []Source
	switch body := root.Content[0]; body.Kind {
	case yaml.SequenceNode:
		if err := body.Decode(&sources); err != nil {
			return nil, fmt.Errorf("invalid source list: %v: %w", err, rgpipe.ErrInvalidConfig)
		}
	case yaml.MappingNode:
		var doc document
		if err := body.Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid manifest: %v: %w", err, rgpipe.ErrInvalidConfig)
		}
		sources = doc.Sources
	default:
		return nil, fmt.Errorf("manifest must be a list or a mapping with a sources key: %w", rgpipe.ErrInvalidConfig)
	}

	if len(sources) == 0 {
		return nil, fmt.Errorf("manifest lists no data sources: %w", rgpipe.ErrInvalidConfig)
	}

	var errs []error
	for i := range sources {
		s := &sources[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if err := validate(*s); err != nil {
			errs = append(errs, fmt.Errorf("source %d: %w", i, err))
			continue
		}
		if !filepath.IsAbs(s.Path) && baseDir != "" {
			s.Path = filepath.Join(baseDir, s.Path)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Manifest{Sources: sources}, nil
}

func validate(s Source) error {
	if s.Path == "" {
		return fmt.Errorf("path is required: %w", rgpipe.ErrInvalidConfig)
	}
	switch s.Type {
	case TypeJSON, TypeYAML:
	case "":
		return fmt.Errorf("type is required: %w", rgpipe.ErrInvalidConfig)
	default:
		return fmt.Errorf("%q (supported: %s, %s): %w", s.Type, TypeJSON, TypeYAML, rgpipe.ErrUnsupportedSource)
	}
	if s.Compression != "" && !strings.EqualFold(s.Compression, CompressionZstd) {
		return fmt.Errorf("compression %q (supported: %s): %w", s.Compression, CompressionZstd, rgpipe.ErrUnsupportedSource)
	}
	return nil
}
