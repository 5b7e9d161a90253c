// Package store provides the filesystem-backed ports.RecordStore that reads
// and writes per-subject result records laid out as
// <root>/<model>/<subject>.<ext>.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/ahrav/go-sleepeval/internal/domain"
	"github.com/ahrav/go-sleepeval/internal/ports"
)

var _ ports.RecordStore = (*FileStore)(nil)

var validate = validator.New()

// ErrInvalidName is returned for model or subject names that would escape
// the experiment root.
var ErrInvalidName = errors.New("invalid model or subject name")

// FileStoreConfig configures a FileStore.
type FileStoreConfig struct {
	// Root is the experiment directory holding one subdirectory per model.
	Root string `yaml:"root" json:"root" validate:"required"`

	// Format is the encoding used by Write. Reads accept every supported
	// encoding regardless of this setting.
	Format Format `yaml:"format" json:"format" validate:"omitempty,oneof=json yaml"`

	// NumClasses bounds the class labels accepted on read.
	NumClasses int `yaml:"num_classes" json:"num_classes" validate:"min=2,max=64"`
}

// FileStore implements ports.RecordStore on a local directory tree.
// Directory listings are sorted so every caller sees models and subjects
// in the same order. The store assumes a single writer.
type FileStore struct {
	config  FileStoreConfig
	logger  *slog.Logger
	metrics ports.MetricsCollector
}

// NewFileStore creates a FileStore rooted at config.Root. The root must
// exist and be a directory. logger and metrics may be nil.
func NewFileStore(config FileStoreConfig, logger *slog.Logger, metrics ports.MetricsCollector) (*FileStore, error) {
	if config.Format == "" {
		config.Format = FormatJSON
	}
	if config.NumClasses == 0 {
		config.NumClasses = domain.NumClasses
	}
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("store configuration validation failed: %w", err)
	}

	info, err := os.Stat(config.Root)
	if err != nil {
		return nil, ports.NewStoreError(config.Root, "open", err)
	}
	if !info.IsDir() {
		return nil, ports.NewStoreError(config.Root, "open", fmt.Errorf("%w: not a directory", domain.ErrInvalidInput))
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{config: config, logger: logger, metrics: metrics}, nil
}

// Root returns the experiment directory.
func (s *FileStore) Root() string { return s.config.Root }

// ListModels returns the non-hidden subdirectories of the root in
// ascending order.
func (s *FileStore) ListModels(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.config.Root)
	if err != nil {
		return nil, ports.NewStoreError(s.config.Root, "list_models", err)
	}

	models := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		return e.Name(), e.IsDir() && !isHidden(e.Name())
	})
	slices.Sort(models)
	return models, nil
}

// ListSubjects returns the stems of the record files of model in ascending
// order. A subject stored under several extensions is listed once.
func (s *FileStore) ListSubjects(ctx context.Context, model string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.modelDir(model)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.NewStoreError(dir, "list_subjects", fmt.Errorf("%w: model %q", ports.ErrRecordNotFound, model))
		}
		return nil, ports.NewStoreError(dir, "list_subjects", err)
	}

	subjects := lo.FilterMap(entries, func(e fs.DirEntry, _ int) (string, bool) {
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if e.IsDir() || isHidden(name) || !slices.Contains(readExtensions, ext) {
			return "", false
		}
		return strings.TrimSuffix(name, filepath.Ext(name)), true
	})
	subjects = lo.Uniq(subjects)
	slices.Sort(subjects)
	return subjects, nil
}

// Read loads the record of subject for model. The first existing file in
// .json, .yaml, .yml order is used.
func (s *FileStore) Read(ctx context.Context, model, subject string) (domain.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ResultRecord{}, err
	}
	start := time.Now()

	path, err := s.findRecord(model, subject)
	if err != nil {
		return domain.ResultRecord{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ResultRecord{}, ports.NewStoreError(path, "read", err)
	}
	raw, err := decodeRaw(path, data)
	if err != nil {
		return domain.ResultRecord{}, ports.NewStoreError(path, "decode", err)
	}
	rec, err := raw.toRecord(subject, model, s.config.NumClasses)
	if err != nil {
		return domain.ResultRecord{}, ports.NewStoreError(path, "decode", domain.NewRecordError(subject, model, "read", err))
	}

	s.logger.Debug("record read", "model", model, "subject", subject, "epochs", rec.Epochs())
	s.record("read", model, time.Since(start))
	return rec, nil
}

// Write persists rec under rec.ModelID/rec.SubjectID in the configured
// format, replacing any existing file for that subject.
func (s *FileStore) Write(ctx context.Context, rec domain.ResultRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	dir, err := s.modelDir(rec.ModelID)
	if err != nil {
		return err
	}
	if err := checkName(rec.SubjectID); err != nil {
		return err
	}
	if err := rec.Validate(s.config.NumClasses); err != nil {
		return domain.NewRecordError(rec.SubjectID, rec.ModelID, "write", err)
	}

	data, err := encodeRecord(s.config.Format, rec)
	if err != nil {
		return ports.NewStoreError(dir, "encode", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.NewStoreError(dir, "mkdir", err)
	}

	// Drop copies in other encodings so reads see the new file.
	for _, ext := range readExtensions {
		stale := filepath.Join(dir, rec.SubjectID+ext)
		if ext == s.config.Format.Extension() {
			continue
		}
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ports.NewStoreError(stale, "remove", err)
		}
	}

	path := filepath.Join(dir, rec.SubjectID+s.config.Format.Extension())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ports.NewStoreError(path, "write", err)
	}

	s.logger.Debug("record written", "model", rec.ModelID, "subject", rec.SubjectID, "path", path)
	s.record("write", rec.ModelID, time.Since(start))
	return nil
}

// ResetModel deletes the model directory and recreates it empty.
func (s *FileStore) ResetModel(ctx context.Context, model string) error {
	if err := s.RemoveModel(ctx, model); err != nil {
		return err
	}
	dir, err := s.modelDir(model)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ports.NewStoreError(dir, "mkdir", err)
	}
	return nil
}

// RemoveModel deletes the model directory and everything below it.
func (s *FileStore) RemoveModel(ctx context.Context, model string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := s.modelDir(model)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return ports.NewStoreError(dir, "remove_model", err)
	}
	s.logger.Debug("model directory removed", "model", model, "path", dir)
	return nil
}

func (s *FileStore) modelDir(model string) (string, error) {
	if err := checkName(model); err != nil {
		return "", err
	}
	return filepath.Join(s.config.Root, model), nil
}

func (s *FileStore) findRecord(model, subject string) (string, error) {
	dir, err := s.modelDir(model)
	if err != nil {
		return "", err
	}
	if err := checkName(subject); err != nil {
		return "", err
	}
	for _, ext := range readExtensions {
		path := filepath.Join(dir, subject+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", ports.NewStoreError(filepath.Join(dir, subject),
		"read", fmt.Errorf("%w: model %q subject %q", ports.ErrRecordNotFound, model, subject))
}

func (s *FileStore) record(op, model string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	labels := map[string]string{"model": model}
	s.metrics.RecordLatency("store_"+op, elapsed, labels)
	s.metrics.RecordCounter("records_"+op, 1, labels)
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func isHidden(name string) bool { return strings.HasPrefix(name, ".") }
