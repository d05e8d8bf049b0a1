// Package registry stores trained models on the local filesystem in a layout
// a model-management UI can browse, with a badger index for lookups.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/okian/elbow/internal/domain/model"
	"github.com/okian/elbow/pkg/logger"
	"github.com/okian/elbow/pkg/metrics"
)

const (
	modelKeyPrefix   = "model/"
	versionKeyPrefix = "version/"

	manifestFile = "MLmodel"
	exampleFile  = "input_example.json"
	payloadFile  = "model.json"
	sparkDir     = "sparkml"
)

// Entry is a model to register.
type Entry struct {
	Name      string
	Algorithm string
	Param     int
	Label     string
	Columns   []string
	// Example is one input row, aligned with Columns.
	Example []float64
	Metrics map[string]float64
	// Model is an in-process model written as JSON.
	Model any
	// Dir is a local directory holding a model pulled from the cluster.
	Dir string
}

// Metadata is what the index keeps per model.
type Metadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Version   string             `json:"version"`
	Algorithm string             `json:"algorithm"`
	Param     int                `json:"param"`
	Flavor    string             `json:"flavor"`
	Label     string             `json:"label"`
	Columns   []string           `json:"columns"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Path      string             `json:"path"`
	URI       string             `json:"uri"`
	CreatedAt time.Time          `json:"created_at"`
}

// Handle returns the retrieval handle for m.
func (m Metadata) Handle() model.ModelHandle {
	return model.ModelHandle{ID: m.ID, Name: m.Name, Version: m.Version, URI: m.URI}
}

// Registry writes <root>/<name>/<version>/ directories and indexes them.
type Registry struct {
	root     string
	db       *badger.DB
	log      logger.Logger
	inMemory bool
	now      func() time.Time
}

// Open creates root and opens the index under it.
func Open(root string, opts ...Option) (*Registry, error) {
	r := &Registry{root: root, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create registry root: %w", err)
	}

	bopts := badger.DefaultOptions(filepath.Join(root, ".index")).WithLogger(nil)
	if r.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open registry index: %w", err)
	}
	r.db = db
	return r, nil
}

// Close closes the index.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Save writes the artifact, its manifest and example row, then indexes it
// under the next version of e.Name.
func (r *Registry) Save(ctx context.Context, e Entry) (model.ModelHandle, error) {
	if e.Model == nil && e.Dir == "" {
		return model.ModelHandle{}, ErrNoArtifact
	}
	version, err := r.nextVersion(e.Name)
	if err != nil {
		return model.ModelHandle{}, err
	}

	meta := Metadata{
		ID:        uuid.NewString(),
		Name:      e.Name,
		Version:   strconv.Itoa(version),
		Algorithm: e.Algorithm,
		Param:     e.Param,
		Flavor:    flavorOf(e),
		Label:     e.Label,
		Columns:   slices.Clone(e.Columns),
		Metrics:   e.Metrics,
		CreatedAt: r.now().UTC(),
	}
	meta.Path = filepath.Join(r.root, e.Name, meta.Version)
	meta.URI = "models:/" + e.Name + "/" + meta.Version

	if err := r.writeDir(e, meta); err != nil {
		return model.ModelHandle{}, err
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return model.ModelHandle{}, fmt.Errorf("marshal metadata: %w", err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(modelKeyPrefix+meta.ID), data)
	})
	if err != nil {
		return model.ModelHandle{}, fmt.Errorf("index model: %w", err)
	}

	metrics.RecordModelSaved()
	r.log.Info(ctx, "model registered",
		logger.String("id", meta.ID),
		logger.String("name", meta.Name),
		logger.String("version", meta.Version),
		logger.String("path", meta.Path),
	)
	return meta.Handle(), nil
}

// nextVersion bumps the per-name counter.
func (r *Registry) nextVersion(name string) (int, error) {
	var next int
	err := r.db.Update(func(txn *badger.Txn) error {
		key := []byte(versionKeyPrefix + name)
		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				n, err := strconv.Atoi(string(val))
				next = n
				return err
			}); err != nil {
				return err
			}
		}
		next++
		return txn.Set(key, []byte(strconv.Itoa(next)))
	})
	if err != nil {
		return 0, fmt.Errorf("allocate version for %s: %w", name, err)
	}
	return next, nil
}

// writeDir builds the version directory next to its final place and renames
// it in, so a half-written model is never visible.
func (r *Registry) writeDir(e Entry, meta Metadata) error {
	parent := filepath.Dir(meta.Path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.MkdirTemp(parent, ".tmp-")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	if e.Model != nil {
		b, err := json.MarshalIndent(e.Model, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal model: %w", err)
		}
		if err := os.WriteFile(filepath.Join(tmp, payloadFile), b, 0o644); err != nil {
			return err
		}
	} else if err := os.CopyFS(filepath.Join(tmp, sparkDir), os.DirFS(e.Dir)); err != nil {
		return fmt.Errorf("copy model dir %s: %w", e.Dir, err)
	}

	if err := writeExample(filepath.Join(tmp, exampleFile), e); err != nil {
		return err
	}
	if err := writeManifest(filepath.Join(tmp, manifestFile), e, meta); err != nil {
		return err
	}
	if err := os.Rename(tmp, meta.Path); err != nil {
		return fmt.Errorf("publish model dir: %w", err)
	}
	return nil
}

// Get returns the metadata of id.
func (r *Registry) Get(_ context.Context, id string) (Metadata, error) {
	var meta Metadata
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(modelKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	return meta, err
}

// List returns every model, newest first.
func (r *Registry) List(_ context.Context) ([]Metadata, error) {
	out := []Metadata{}
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(modelKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var m Metadata
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return err
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	slices.SortStableFunc(out, func(a, b Metadata) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareVersions(b.Version, a.Version)
	})
	return out, nil
}

func compareVersions(a, b string) int {
	x, _ := strconv.Atoi(a)
	y, _ := strconv.Atoi(b)
	return x - y
}

func flavorOf(e Entry) string {
	if e.Model != nil {
		return "elbow." + e.Algorithm
	}
	return "spark"
}

type inputExample struct {
	Columns []string    `json:"columns"`
	Data    [][]float64 `json:"data"`
}

func writeExample(path string, e Entry) error {
	ex := inputExample{Columns: e.Columns, Data: [][]float64{}}
	if len(e.Example) > 0 {
		ex.Data = append(ex.Data, e.Example)
	}
	b, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("marshal input example: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

// Manifest is the MLmodel file.
type Manifest struct {
	Name           string             `yaml:"name"`
	Version        string             `yaml:"version"`
	ModelUUID      string             `yaml:"model_uuid"`
	Algorithm      string             `yaml:"algorithm"`
	Param          int                `yaml:"param"`
	Flavors        map[string]Flavor  `yaml:"flavors"`
	Signature      Signature          `yaml:"signature"`
	InputExample   string             `yaml:"saved_input_example_info"`
	Metrics        map[string]float64 `yaml:"metrics,omitempty"`
	UTCTimeCreated string             `yaml:"utc_time_created"`
}

// Flavor names how to load the artifact.
type Flavor struct {
	Data string `yaml:"data"`
}

// Signature lists the model's inputs and output.
type Signature struct {
	Inputs  []Column `yaml:"inputs"`
	Outputs []Column `yaml:"outputs"`
}

// Column is one typed signature field.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func writeManifest(path string, e Entry, meta Metadata) error {
	data := payloadFile
	if e.Model == nil {
		data = sparkDir
	}
	m := Manifest{
		Name:           meta.Name,
		Version:        meta.Version,
		ModelUUID:      meta.ID,
		Algorithm:      meta.Algorithm,
		Param:          meta.Param,
		Flavors:        map[string]Flavor{meta.Flavor: {Data: data}},
		InputExample:   exampleFile,
		Metrics:        e.Metrics,
		UTCTimeCreated: meta.CreatedAt.Format("2006-01-02 15:04:05.000000"),
	}
	for _, c := range e.Columns {
		m.Signature.Inputs = append(m.Signature.Inputs, Column{Name: c, Type: "double"})
	}
	m.Signature.Outputs = []Column{{Name: e.Label, Type: "double"}}

	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", manifestFile, err)
	}
	return os.WriteFile(path, b, 0o644)
}

// ReadManifest parses the MLmodel file of a registered model.
func ReadManifest(meta Metadata) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(meta.Path, manifestFile))
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse %s: %w", manifestFile, err)
	}
	return m, nil
}
