package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Located is a config value together with the path of the file it was read from.
type Located[T any] struct {
	Value T
	Path  string
}

// Dir is the directory the config was read from.
func (l Located[T]) Dir() string {
	return filepath.Dir(l.Path)
}

// ResolvePath makes a path from the config relative to the config's directory.
func (l Located[T]) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.Dir(), path)
}

func localVariant(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.local%s", strings.TrimSuffix(name, ext), ext)
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}
	err = json5.Unmarshal(contents, out)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// ReadConfig reads a json5 file, `name` should come with a file extension.
// A sibling file named <name>.local.<ext> is merged over it when present.
// It returns os.ErrNotExist when neither file exists.
func ReadConfig[T any](name string) (T, error) {
	var out T

	found, err := readInto(name, &out)
	if err != nil {
		return out, err
	}

	local := localVariant(name)
	var override T
	foundLocal, err := readInto(local, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		err = mergo.Merge(&out, override, mergo.WithOverride)
		if err != nil {
			return out, err
		}
		slog.Info("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively is ReadConfig, but it walks up the filesystem from the cwd
// until it finds a configuration file matching the name.
func ReadRecursively[T any](name string) (Located[T], error) {
	current, err := os.Getwd()
	if err != nil {
		return Located[T]{}, err
	}

	for {
		path := filepath.Join(current, name)
		config, err := ReadConfig[T](path)
		if err == nil {
			return Located[T]{Value: config, Path: path}, nil
		}
		if !os.IsNotExist(err) {
			return Located[T]{}, err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return Located[T]{}, os.ErrNotExist
		}
		current = parent
	}
}

// Read reads the config at an explicit path, or searches for it recursively
// when the path is relative and does not exist next to the cwd.
func Read[T any](path string) (Located[T], error) {
	config, err := ReadConfig[T](path)
	if err == nil {
		abs, absErr := filepath.Abs(path)
		if absErr != nil {
			abs = path
		}
		return Located[T]{Value: config, Path: abs}, nil
	}
	if !os.IsNotExist(err) || filepath.IsAbs(path) {
		return Located[T]{}, err
	}
	return ReadRecursively[T](path)
}
