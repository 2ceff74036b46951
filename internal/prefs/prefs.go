// Package prefs reads and writes the user preferences file (config.json).
package prefs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// KeyPlayerPath is the preference holding the media player executable.
const KeyPlayerPath = "player_path"

// Keys lists the supported preference keys.
var Keys = []string{KeyPlayerPath}

// ErrUnknownKey is returned for keys outside Keys.
var ErrUnknownKey = errors.New("unknown preference key")

// Prefs holds user preferences.
type Prefs struct {
	PlayerPath string `mapstructure:"player_path" json:"player_path"`
}

// File is a preferences file on disk. Unknown keys already in the file are
// kept when saving.
type File struct {
	path string
}

// NewFile returns the preferences file at path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

func (f *File) read() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, nil
		}
		return v, fmt.Errorf("reading preferences %s: %w", f.path, err)
	}
	return v, nil
}

// Load reads the preferences. A missing file yields zero preferences. A
// malformed file yields zero preferences and an error.
func (f *File) Load() (Prefs, error) {
	v, err := f.read()
	if err != nil {
		return Prefs{}, err
	}
	var p Prefs
	if err := v.Unmarshal(&p); err != nil {
		return Prefs{}, fmt.Errorf("decoding preferences: %w", err)
	}
	p.PlayerPath = strings.TrimSpace(p.PlayerPath)
	return p, nil
}

// Get returns one preference value.
func (f *File) Get(key string) (string, error) {
	if !slices.Contains(Keys, key) {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := f.read()
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// Set stores one preference value and writes the file. A malformed file is
// replaced.
func (f *File) Set(key, value string) error {
	if !slices.Contains(Keys, key) {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := f.read()
	if err != nil {
		v = viper.New()
		v.SetConfigType("json")
	}
	v.Set(key, strings.TrimSpace(value))

	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating preferences directory: %w", err)
		}
	}
	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("writing preferences %s: %w", f.path, err)
	}
	return nil
}
