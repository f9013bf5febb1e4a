package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrUnknownFormat is returned for toggle files that are neither YAML nor
// TOML by extension.
var ErrUnknownFormat = errors.New("unknown settings file format")

// togglesFile is the on-disk shape:
//
//	settings:
//	  split: true
//	  any_percent: false
type togglesFile struct {
	Settings map[string]bool `yaml:"settings" toml:"settings"`
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// LoadToggles reads toggle values from a YAML or TOML file, chosen by
// extension. Unknown top-level keys are rejected. A missing file yields an
// error wrapping os.ErrNotExist.
func LoadToggles(path string) (map[string]bool, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var tf togglesFile
	switch f {
	case formatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case formatTOML:
		md, err := toml.Decode(string(data), &tf)
		if err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("parse error in %s: unknown keys %s", path, strings.Join(keys, ", "))
		}
	}

	if tf.Settings == nil {
		tf.Settings = map[string]bool{}
	}
	return tf.Settings, nil
}

// SaveToggles writes values to path in the format its extension names.
// Keys are written in sorted order.
func SaveToggles(path string, values map[string]bool) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}

	tf := togglesFile{Settings: values}
	if tf.Settings == nil {
		tf.Settings = map[string]bool{}
	}

	var buf bytes.Buffer
	switch f {
	case formatYAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tf); err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
	case formatTOML:
		if err := toml.NewEncoder(&buf).Encode(tf); err != nil {
			return fmt.Errorf("encode settings: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
