package source

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"github.com/vvka-141/rgpipe/internal/checksum"
	"github.com/vvka-141/rgpipe/internal/manifest"
	"github.com/vvka-141/rgpipe/pkg/rgpipe"
	"gopkg.in/yaml.v3"
)

// File is a decoded data source.
type File struct {
	Source   manifest.Source
	Sessions []rgpipe.SessionRecord

	// SHA256 is the checksum of the file as stored on disk.
	SHA256 string
	Size   int
}

// Read loads src and decodes its sessions for variant v.
// A missing file yields rgpipe.ErrSourceNotFound before anything is decoded.
func Read(src manifest.Source, v rgpipe.Variant) (*File, error) {
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", src.Path, rgpipe.ErrSourceNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", src.Path, err)
	}

	data := raw
	if src.Compressed() {
		data, err = decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress %s: %w", src.Path, err)
		}
	}

	doc, err := decode(src.Type, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	sessions, err := Sessions(doc, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.Path, err)
	}

	return &File{
		Source:   src,
		Sessions: sessions,
		SHA256:   checksum.New().CalculateRaw(raw),
		Size:     len(raw),
	}, nil
}

func decompress(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(raw, nil)
}

func decode(typ string, data []byte) (any, error) {
	var doc any
	switch typ {
	case manifest.TypeJSON:
		d := json.NewDecoder(bytes.NewReader(data))
		d.UseNumber()
		if err := d.Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid JSON: %v: %w", err, rgpipe.ErrMalformedRecord)
		}
	case manifest.TypeYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML: %v: %w", err, rgpipe.ErrMalformedRecord)
		}
	default:
		return nil, fmt.Errorf("%q: %w", typ, rgpipe.ErrUnsupportedSource)
	}
	return doc, nil
}
