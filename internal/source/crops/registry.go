// Package crops keeps the farmer's crop list in a YAML file and reloads it
// when the file changes on disk.
package crops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/nhle/climate-alerts/internal/model"
)

// document is the on-disk layout of the registry file.
type document struct {
	Crops []model.Crop `yaml:"crops"`
}

// Stats summarises the registry.
type Stats struct {
	Total  int
	ByType map[string]int
}

// Registry is a YAML-backed crop list.
type Registry struct {
	path     string
	logger   *slog.Logger
	validate *validator.Validate

	mu    sync.RWMutex
	crops []model.Crop

	w *watchState
}

// Open loads the registry at path. A missing file is an empty registry;
// it is created on the first Add.
func Open(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		path:     path,
		logger:   logger,
		validate: validator.New(),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the registry file location.
func (r *Registry) Path() string { return r.path }

// Crops returns a copy of the current list.
func (r *Registry) Crops(ctx context.Context) ([]model.Crop, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.crops), nil
}

// Get returns the crop with the given id.
func (r *Registry) Get(id string) (model.Crop, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.crops {
		if c.ID == id {
			return c, true
		}
	}
	return model.Crop{}, false
}

// Reload re-reads the file. On error the previous list is kept.
func (r *Registry) Reload() error {
	crops, err := r.read()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.crops = crops
	r.mu.Unlock()
	return nil
}

// Add validates c, assigns an id if it has none, and writes the registry.
func (r *Registry) Add(c model.Crop) (model.Crop, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if err := r.validate.Struct(c); err != nil {
		return model.Crop{}, fmt.Errorf("invalid crop: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.crops {
		if existing.ID == c.ID {
			return model.Crop{}, fmt.Errorf("crop %s already exists", c.ID)
		}
	}
	next := append(slices.Clone(r.crops), c)
	if err := r.write(next); err != nil {
		return model.Crop{}, err
	}
	r.crops = next
	return c, nil
}

// Remove deletes the crop with the given id. It reports whether the crop
// existed.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := slices.IndexFunc(r.crops, func(c model.Crop) bool { return c.ID == id })
	if i < 0 {
		return false, nil
	}
	next := slices.Delete(slices.Clone(r.crops), i, i+1)
	if err := r.write(next); err != nil {
		return false, err
	}
	r.crops = next
	return true, nil
}

// Stats counts crops in total and per type.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := Stats{Total: len(r.crops), ByType: make(map[string]int)}
	for _, c := range r.crops {
		s.ByType[c.Type]++
	}
	return s
}

// Types returns the distinct crop types, sorted.
func (s Stats) Types() []string {
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) read() ([]model.Crop, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Crop{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading crop registry %s: %w", r.path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing crop registry %s: %w", r.path, err)
	}

	seen := make(map[string]bool, len(doc.Crops))
	for i, c := range doc.Crops {
		if err := r.validate.Struct(c); err != nil {
			return nil, fmt.Errorf("crop %d in %s: %w", i, r.path, err)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate crop id %q in %s", c.ID, r.path)
		}
		seen[c.ID] = true
	}
	if doc.Crops == nil {
		doc.Crops = []model.Crop{}
	}
	return doc.Crops, nil
}

// write saves crops atomically. Callers hold mu.
func (r *Registry) write(crops []model.Crop) error {
	data, err := yaml.Marshal(document{Crops: crops})
	if err != nil {
		return fmt.Errorf("encoding crop registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating registry directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replacing %s: %w", r.path, err)
	}
	return nil
}
