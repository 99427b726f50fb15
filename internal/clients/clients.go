// Package clients keeps the registry of applications allowed to call the
// server. Definitions are read from a directory of JSON or YAML files and
// reloaded when the directory changes.
package clients

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var ErrInvalidDefinition = errors.New("invalid client definition")

// Definition describes one calling application.
type Definition struct {
	Name     string         `json:"name" yaml:"name"`
	Secret   string         `json:"secret" yaml:"secret"`
	Token    string         `json:"token" yaml:"token"`
	Metadata map[string]any `json:"metadata" yaml:"metadata"`
}

type Registry struct {
	dir      string
	log      *logrus.Logger
	debounce time.Duration

	mu      sync.RWMutex
	clients map[string]*Definition

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type Option func(*Registry)

func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithDebounce sets how long the watcher waits for changes to settle before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(r *Registry) {
		r.debounce = d
	}
}

// Load reads every definition in dir. Unreadable or invalid files are
// logged and skipped; an unreadable directory is an error.
func Load(
	dir string,
	opts ...Option,
) (
	*Registry,
	error,
) {
	r := &Registry{
		dir:      dir,
		log:      logrus.New(),
		debounce: 500 * time.Millisecond,
		clients:  make(map[string]*Definition),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload replaces the registry contents with the definitions currently on
// disk.
func (r *Registry) Reload() error {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("failed to read clients directory '%s': %w", r.dir, err)
	}

	defs := make(map[string]*Definition)
	for _, file := range files {
		if !file.Type().IsRegular() || !isDefinitionFile(file.Name()) {
			continue
		}
		name := file.Name()
		def, err := loadDefinition(filepath.Join(r.dir, name))
		if err != nil {
			r.log.WithField("file", name).WithError(err).Warn("clients: skipping definition")
			continue
		}
		if dup, ok := duplicateOf(defs, def); ok {
			r.log.WithFields(logrus.Fields{
				"file":   name,
				"client": def.Name,
				"clash":  dup,
			}).Warn("clients: skipping duplicate definition")
			continue
		}
		defs[def.Name] = def
	}

	r.mu.Lock()
	r.clients = defs
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{
		"dir":     r.dir,
		"clients": len(defs),
	}).Info("loaded client definitions")
	return nil
}

// Lookup finds the application holding the given credential pair.
func (r *Registry) Lookup(secret, token string) (*Definition, bool) {
	if secret == "" || token == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var match *Definition
	for _, def := range r.clients {
		secretOK := subtle.ConstantTimeCompare([]byte(def.Secret), []byte(secret)) == 1
		tokenOK := subtle.ConstantTimeCompare([]byte(def.Token), []byte(token)) == 1
		if secretOK && tokenOK {
			match = def
		}
	}
	if match == nil {
		return nil, false
	}
	return match.clone(), true
}

// duplicateOf reports the loaded definition that def clashes with, either
// by name or by credential pair.
func duplicateOf(defs map[string]*Definition, def *Definition) (string, bool) {
	if _, ok := defs[def.Name]; ok {
		return def.Name, true
	}
	for name, other := range defs {
		if other.Secret == def.Secret && other.Token == def.Token {
			return name, true
		}
	}
	return "", false
}

func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.clients[name]
	if !ok {
		return nil, false
	}
	return def.clone(), true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (d *Definition) clone() *Definition {
	c := *d
	c.Metadata = maps.Clone(d.Metadata)
	return &c
}

func isDefinitionFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func loadDefinition(path string) (*Definition, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load client definition: %w", err)
	}

	def := &Definition{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(file, def)
	default:
		err = yaml.Unmarshal(file, def)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", path, err)
	}

	if def.Name == "" {
		base := filepath.Base(path)
		def.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if def.Secret == "" || def.Token == "" {
		return nil, fmt.Errorf("%w: '%s' needs both secret and token", ErrInvalidDefinition, def.Name)
	}
	return def, nil
}
