package app

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ragbase/internal/chunker"
	"ragbase/internal/config"
	"ragbase/internal/docparse"
	"ragbase/internal/metrics"
	"ragbase/internal/model"
)

// ImportReport summarizes one directory import.
type ImportReport struct {
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	FilesFailed    int `json:"files_failed"`
	ChunksStored   int `json:"chunks_stored"`
	ChunksFailed   int `json:"chunks_failed"`
}

// SyncReport summarizes one sync pass: the diff plus the re-ingest result.
type SyncReport struct {
	NewFiles       []string     `json:"new_files"`
	ChangedFiles   []string     `json:"changed_files"`
	UnchangedFiles int          `json:"unchanged_files"`
	DeletedChunks  int64        `json:"deleted_chunks"`
	Import         ImportReport `json:"import"`
}

// IngestService walks directories, parses and chunks files, embeds chunk
// content, and persists the results.
type IngestService struct {
	cfg      *config.Config
	parser   *docparse.Parser
	splitter *chunker.Chunker
	embedder Embedder
	repo     ChunkStore
	logger   *zap.Logger
}

func NewIngestService(
	cfg *config.Config,
	parser *docparse.Parser,
	splitter *chunker.Chunker,
	embedder Embedder,
	repo ChunkStore,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		cfg:      cfg,
		parser:   parser,
		splitter: splitter,
		embedder: embedder,
		repo:     repo,
		logger:   logger,
	}
}

// CheckDirectory verifies the ingest target exists and is a directory. It is
// called before a job is accepted so the caller gets a synchronous error.
func (s *IngestService) CheckDirectory(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, dir)
	}
	return nil
}

// ProcessImport ingests every supported file under dir. Individual file and
// chunk failures are counted and logged; they do not abort the run.
func (s *IngestService) ProcessImport(ctx context.Context, dir string) (ImportReport, error) {
	if err := s.CheckDirectory(dir); err != nil {
		return ImportReport{}, err
	}
	files, err := s.collectFiles(dir)
	if err != nil {
		return ImportReport{}, err
	}
	return s.ingestFiles(ctx, files), nil
}

// ProcessSync diffs dir against the store by path and fingerprint, removes
// stale versions of changed files, and re-ingests new and changed ones.
// Unchanged files are left untouched and never count against the sync cap,
// which applies only to the combined new+changed set; overflow is deferred
// to the next run.
func (s *IngestService) ProcessSync(ctx context.Context, dir string) (SyncReport, error) {
	if err := s.CheckDirectory(dir); err != nil {
		return SyncReport{}, err
	}
	files, err := s.collectFiles(dir)
	if err != nil {
		return SyncReport{}, err
	}

	identities, err := s.repo.PathIdentities()
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{NewFiles: []string{}, ChangedFiles: []string{}}
	staleIDs := make(map[string]string)
	var newFiles, changedFiles []string
	for _, path := range files {
		storedID, known := identities[path]
		if !known {
			newFiles = append(newFiles, path)
			continue
		}
		fp, err := docparse.Fingerprint(path)
		if err != nil {
			s.logger.Warn("fingerprint failed during sync", zap.String("path", path), zap.Error(err))
			report.Import.FilesFailed++
			continue
		}
		if fp == storedID {
			report.UnchangedFiles++
			continue
		}
		changedFiles = append(changedFiles, path)
		staleIDs[path] = storedID
	}

	toIngest := append(append([]string{}, newFiles...), changedFiles...)
	if max := s.cfg.Ingest.MaxSyncFiles; max > 0 && len(toIngest) > max {
		s.logger.Warn("sync batch exceeds file limit, deferring overflow",
			zap.Int("new", len(newFiles)),
			zap.Int("changed", len(changedFiles)),
			zap.Int("limit", max))
		toIngest = toIngest[:max]
	}

	ready := make([]string, 0, len(toIngest))
	for _, path := range toIngest {
		storedID, changed := staleIDs[path]
		if !changed {
			report.NewFiles = append(report.NewFiles, path)
			ready = append(ready, path)
			continue
		}
		// Changed on disk: drop the stale version before re-ingesting.
		deleted, err := s.repo.DeleteByDocumentID(storedID)
		if err != nil {
			s.logger.Error("delete stale document failed",
				zap.String("path", path),
				zap.String("document_id", storedID),
				zap.Error(err))
			report.Import.FilesFailed++
			continue
		}
		report.DeletedChunks += deleted
		report.ChangedFiles = append(report.ChangedFiles, path)
		ready = append(ready, path)
	}

	imported := s.ingestFiles(ctx, ready)
	report.Import.FilesProcessed += imported.FilesProcessed
	report.Import.FilesSkipped += imported.FilesSkipped
	report.Import.FilesFailed += imported.FilesFailed
	report.Import.ChunksStored += imported.ChunksStored
	report.Import.ChunksFailed += imported.ChunksFailed
	return report, nil
}

// collectFiles returns the supported files under dir in sorted order so runs
// are deterministic.
func (s *IngestService) collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && docparse.Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory failed: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

func (s *IngestService) ingestFiles(ctx context.Context, files []string) ImportReport {
	var report ImportReport
	for _, path := range files {
		if ctx.Err() != nil {
			s.logger.Warn("ingest interrupted", zap.Int("remaining", len(files)-report.FilesProcessed))
			break
		}
		stored, failed, skipped, err := s.ingestFile(ctx, path)
		if err != nil {
			s.logger.Error("ingest file failed", zap.String("path", path), zap.Error(err))
			metrics.IngestFailures.Inc()
			report.FilesFailed++
			continue
		}
		report.ChunksStored += stored
		report.ChunksFailed += failed
		if skipped {
			report.FilesSkipped++
		} else {
			report.FilesProcessed++
		}
	}
	return report
}

// ingestFile parses, chunks, embeds, and stores one file. Chunks already
// present for this document version are skipped, making re-imports
// idempotent. Batches are committed every BatchCommitSize chunks; a failed
// batch is dropped and counted, not retried.
func (s *IngestService) ingestFile(ctx context.Context, path string) (stored, failed int, skipped bool, err error) {
	docID, err := docparse.Fingerprint(path)
	if err != nil {
		return 0, 0, false, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, false, err
	}

	extraction, err := s.parser.Parse(path)
	if err != nil {
		return 0, 0, false, err
	}
	chunks := s.splitter.Chunk(extraction)
	if len(chunks) == 0 {
		s.logger.Warn("file produced no chunks", zap.String("path", path))
		return 0, 0, true, nil
	}

	docName := filepath.Base(path)
	baseMeta := map[string]any{
		"document_id":   docID,
		"document_name": docName,
		"document_path": path,
		"file_size":     info.Size(),
		"file_ext":      strings.ToLower(filepath.Ext(path)),
	}
	allExisted := true

	var batch []model.DocumentChunk
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.repo.CreateBatch(batch); err != nil {
			s.logger.Error("commit chunk batch failed",
				zap.String("path", path),
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			failed += len(batch)
			metrics.IngestFailures.Inc()
		} else {
			stored += len(batch)
			metrics.ChunksIngested.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for _, c := range chunks {
		exists, err := s.repo.Exists(docID, c.Index)
		if err != nil {
			return stored, failed, false, err
		}
		if exists {
			continue
		}
		allExisted = false

		vec, err := s.embedder.Embed(ctx, c.Content)
		if err != nil {
			s.logger.Warn("embed chunk failed",
				zap.String("path", path),
				zap.Int("chunk_index", c.Index),
				zap.Error(err))
			failed++
			continue
		}
		if want := s.cfg.Models.EmbeddingDimensions; len(vec) != want {
			s.logger.Warn("embedding dimension mismatch",
				zap.String("path", path),
				zap.Int("chunk_index", c.Index),
				zap.Int("got", len(vec)),
				zap.Int("want", want))
			failed++
			continue
		}

		row := model.DocumentChunk{
			DocumentID:   docID,
			DocumentName: docName,
			DocumentPath: path,
			PageNum:      c.PageNum,
			ParagraphNum: c.ParagraphNum,
			ChunkIndex:   c.Index,
			Content:      c.Content,
		}
		row.SetEmbedding(vec)
		row.SetMetadata(baseMeta)
		batch = append(batch, row)
		if len(batch) >= s.cfg.Ingest.BatchCommitSize {
			flush()
		}
	}
	flush()

	if allExisted {
		s.logger.Info("document already ingested", zap.String("path", path), zap.String("document_id", docID))
		return stored, failed, true, nil
	}
	s.logger.Info("document ingested",
		zap.String("path", path),
		zap.String("document_id", docID),
		zap.Int("chunks_stored", stored),
		zap.Int("chunks_failed", failed))
	return stored, failed, false, nil
}
