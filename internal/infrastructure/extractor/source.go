package extractor

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"Costbook/internal/config"
	"Costbook/internal/domain"
	"Costbook/internal/extract"
	"Costbook/internal/ports"
)

// FileSource implements RecordSource via registered extractor strategies.
// Each configured source contributes the files matching its glob; a file
// that cannot be read or extracted is skipped with a warning so one broken
// document never fails the whole run.
type FileSource struct {
	registry *extract.Registry
	sources  []config.SourceConfig
	layout   extract.Layout
	logger   *slog.Logger
}

var _ ports.RecordSource = (*FileSource)(nil)

// NewFileSource wires the extractor registry with config-defined sources.
func NewFileSource(reg *extract.Registry, sources []config.SourceConfig, layout extract.Layout, log *slog.Logger) *FileSource {
	return &FileSource{
		registry: reg,
		sources:  sources,
		layout:   layout,
		logger:   log,
	}
}

// FetchDocuments lists, hashes and extracts every matching file, in a
// deterministic order.
func (s *FileSource) FetchDocuments(ctx context.Context) ([]domain.Document, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("extractor registry is not configured")
	}

	var documents []domain.Document
	for _, src := range s.sources {
		strategy, err := s.registry.Resolve(src.Extractor)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}

		paths, err := filepath.Glob(src.Glob)
		if err != nil {
			return nil, fmt.Errorf("source %s: bad glob %q: %w", src.Name, src.Glob, err)
		}
		sort.Strings(paths)

		s.debug("source scan", "source", src.Name, "extractor", src.Extractor, "files", len(paths))

		for _, path := range paths {
			hash, err := hashFile(path)
			if err != nil {
				s.warn("unreadable file skipped", "path", path, "error", err)
				continue
			}

			rows, err := strategy.Extract(ctx, extract.Request{
				Path:    path,
				Layout:  s.layout,
				Options: src.Options,
			})
			if err != nil {
				s.warn("extraction failed, file skipped", "path", path, "error", err)
				continue
			}

			documents = append(documents, domain.Document{
				Name: filepath.Base(path),
				Path: path,
				Hash: hash,
				Rows: rows,
			})
		}
	}

	s.debug("file source done", "documents", len(documents))
	return documents, nil
}

// hashFile computes the content hash used for idempotent re-ingestion,
// reading in chunks so large workbooks do not load into memory at once.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := md5.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *FileSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *FileSource) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
