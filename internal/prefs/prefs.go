// Package prefs holds user preferences kept in a YAML file that may be
// edited while the service runs.
package prefs

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Open modes for the browser action.
const (
	OpenModePopup = "popup"
	OpenModeTab   = "tab"
)

// Prefs are the user-tunable preferences.
type Prefs struct {
	// Strict highlights search navigations even when the snippet carries
	// no matched terms.
	Strict   bool   `yaml:"strict" json:"strict"`
	OpenMode string `yaml:"open_mode" json:"open_mode"`
}

// Default returns the preferences used when no file exists.
func Default() Prefs {
	return Prefs{OpenMode: OpenModePopup}
}

// Validate checks the preferences.
func (p Prefs) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.OpenMode, validation.Required, validation.In(OpenModePopup, OpenModeTab)),
	)
}

// Store serves the current preferences and reloads them from disk.
type Store struct {
	path   string
	logger *slog.Logger
	cur    atomic.Pointer[Prefs]
}

// Open loads preferences from path. A missing file yields defaults.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{path: path, logger: logger}
	p, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cur.Store(&p)
	return s, nil
}

// Get returns the current preferences.
func (s *Store) Get() Prefs {
	return *s.cur.Load()
}

// Strict reports the strict highlighting preference.
func (s *Store) Strict() bool {
	return s.Get().Strict
}

// Path returns the preferences file location.
func (s *Store) Path() string {
	return s.path
}

// Set validates p, writes it to disk and makes it current.
func (s *Store) Set(p Prefs) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("prefs: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("prefs: write: %w", err)
	}
	s.cur.Store(&p)
	return nil
}

// reload rereads the file and makes it current. On error the current
// preferences stay.
func (s *Store) reload() (Prefs, error) {
	p, err := s.read()
	if err != nil {
		return s.Get(), err
	}
	s.cur.Store(&p)
	return p, nil
}

func (s *Store) read() (Prefs, error) {
	p := Default()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("prefs: read %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("prefs: parse %s: %w", s.path, err)
	}
	if p.OpenMode == "" {
		p.OpenMode = OpenModePopup
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("prefs: %s: %w", s.path, err)
	}
	return p, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".prefs-tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
