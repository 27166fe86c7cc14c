// Package engine orchestrates sampling runs: it loads a model file and its
// observation data, assembles the data mapping and per-chain initial values,
// submits everything to the sampling engine, and persists the run record and
// retained draws. The engine treats the sampler as a black box; every
// engine-detected error is fatal to that invocation and surfaced verbatim.
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/calder-labs/kiln/internal/dataset"
	"github.com/calder-labs/kiln/internal/model"
	"github.com/calder-labs/kiln/internal/sampler"
	"github.com/calder-labs/kiln/internal/state"
)

// ModelExt is the model file extension.
const ModelExt = ".kiln"

// Config holds engine configuration.
type Config struct {
	// ModelsDir is the path to the model files directory.
	ModelsDir string
	// DataDir is the path to the observation CSV directory.
	DataDir string
	// InitsDir is the path to optional per-model initial-value YAML files.
	InitsDir string
	// StatePath is the path to the SQLite run store.
	StatePath string
	// Sampler is the sampling engine (defaults to the built-in Metropolis
	// engine when nil).
	Sampler sampler.Engine
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine drives sampling runs for one project.
type Engine struct {
	store  *state.SQLiteStore
	smplr  sampler.Engine
	logger *slog.Logger

	modelsDir string
	dataDir   string
	initsDir  string
}

// New creates an engine, opening and migrating the run store.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "models_dir", cfg.ModelsDir, "state_path", cfg.StatePath)

	if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" && cfg.StatePath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate run store: %w", err)
	}

	smplr := cfg.Sampler
	if smplr == nil {
		smplr = sampler.NewMetropolis(logger)
	}

	return &Engine{
		store:     store,
		smplr:     smplr,
		logger:    logger,
		modelsDir: cfg.ModelsDir,
		dataDir:   cfg.DataDir,
		initsDir:  cfg.InitsDir,
	}, nil
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	return e.store.Close()
}

// Store exposes the run store for read-side commands.
func (e *Engine) Store() state.Store {
	return e.store
}

// ListModels returns the model names found in the models directory.
func (e *Engine) ListModels() ([]string, error) {
	entries, err := os.ReadDir(e.modelsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read models directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ModelExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ModelExt))
	}
	sort.Strings(names)
	return names, nil
}

// LoadModel parses a model file and compiles it against its dataset. Models
// without an observation CSV compile against an empty mapping (every
// stochastic node becomes a parameter).
func (e *Engine) LoadModel(name string) (*model.Compiled, *dataset.Dataset, error) {
	path := filepath.Join(e.modelsDir, name+ModelExt)
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read model %s: %w", name, err)
	}

	parsed, err := model.Parse(name, string(content))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse model %s: %w", name, err)
	}

	var ds *dataset.Dataset
	data := &model.Data{}
	csvPath := filepath.Join(e.dataDir, name+".csv")
	if _, statErr := os.Stat(csvPath); statErr == nil {
		ds, err = dataset.Load(csvPath)
		if err != nil {
			return nil, nil, err
		}
		data = ds.Mapping()
		e.logger.Debug("loaded dataset", "model", name, "observations", ds.N, "columns", len(ds.Columns()))
	} else {
		e.logger.Warn("no observation data for model, compiling against empty mapping", "model", name)
	}

	compiled, err := model.Compile(parsed, data)
	if err != nil {
		return nil, nil, err
	}
	return compiled, ds, nil
}
