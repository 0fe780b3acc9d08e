package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/embedding"
	"github.com/akolanti/ComplianceGPT/internal/rag/extract"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/akolanti/ComplianceGPT/internal/retry"
	"github.com/akolanti/ComplianceGPT/internal/tracker"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"golang.org/x/sync/errgroup"
)

// Pipeline turns tracked documents into searchable chunks.
type Pipeline struct {
	tracker  documentModel.Tracker
	store    vectorDB.Store
	embedder embedding.Embedder
	locker   tracker.Locker
	settings config.IngestSettings
	policy   retry.Policy
	logger   *logger_i.Logger

	readFile func(path string) ([]byte, error)
}

type BatchReport struct {
	Ingested      int
	Skipped       int
	Failed        int
	ChunksWritten int
	Failures      map[string]string
	// Err is set when a storage failure stopped the batch early.
	Err error
}

func NewPipeline(t documentModel.Tracker, store vectorDB.Store, embedder embedding.Embedder, locker tracker.Locker, settings config.IngestSettings) *Pipeline {
	if settings.ChunkSize <= 0 {
		settings.ChunkSize = config.ChunkSize
	}
	if settings.ChunkOverlap < 0 || settings.ChunkOverlap >= settings.ChunkSize {
		settings.ChunkOverlap = min(config.ChunkOverlap, settings.ChunkSize/4)
	}
	if settings.MinPageChars <= 0 {
		settings.MinPageChars = config.MinPageChars
	}
	if settings.BatchSize <= 0 {
		settings.BatchSize = config.EmbedBatchSize
	}
	if settings.Workers <= 0 {
		settings.Workers = config.IngestWorkers
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = config.EmbedMaxAttempts
	}
	if locker == nil {
		locker = tracker.NewMemoryLocker()
	}

	logger := logger_i.NewLogger("ingest")
	return &Pipeline{
		tracker:  t,
		store:    store,
		embedder: embedder,
		locker:   locker,
		settings: settings,
		policy: retry.Policy{
			MaxAttempts: settings.MaxAttempts,
			Base:        settings.BackoffBase,
			Max:         30 * time.Second,
			Jitter:      0.2,
			Logger:      logger,
		},
		logger:   logger,
		readFile: os.ReadFile,
	}
}

// Ingest extracts, chunks, embeds and stores one document, then marks it
// ingested. Re-ingesting an unchanged, fully stored document is a no-op.
func (p *Pipeline) Ingest(ctx context.Context, record documentModel.DocumentRecord) (int, error) {
	log := p.logger.ForContext(ctx).With("documentId", record.ID)

	release, ok, err := p.locker.Acquire(ctx, record.ID)
	if err != nil {
		return 0, errorModel.Storage("acquire ingest lock", err)
	}
	if !ok {
		log.Info("ingestion already running elsewhere")
		return 0, errorModel.ErrIngestInProgress
	}
	defer release()

	// the caller's copy may predate a crawl or an earlier ingestion
	current, found, err := p.tracker.Get(ctx, record.ID)
	if err != nil {
		return 0, errorModel.Storage("load record", err)
	}
	if found {
		record = current
	}

	if done, err := p.alreadyStored(ctx, record); err != nil {
		return 0, err
	} else if done {
		log.Debug("document already ingested", "chunks", record.ChunkCount)
		metrics.CountIngestion("skipped", 0)
		return record.ChunkCount, nil
	}

	start := time.Now()
	chunks, documentHash, err := p.prepare(record)
	if err != nil {
		return 0, p.fail(ctx, record, err)
	}

	if err := p.embed(ctx, record.ID, chunks); err != nil {
		return 0, p.fail(ctx, record, err)
	}

	if err := p.store.ReplaceDocument(ctx, record.ID, documentHash, chunks); err != nil {
		log.Error("writing chunks failed", "error", err)
		metrics.CountIngestion("failed", 0)
		return 0, errorModel.Storage("replace document", err)
	}
	if err := p.tracker.MarkIngested(ctx, record.ID, documentHash, len(chunks)); err != nil {
		metrics.CountIngestion("failed", 0)
		return 0, errorModel.Storage("mark ingested", err)
	}

	metrics.CountIngestion("ingested", len(chunks))
	log.Info("document ingested", "chunks", len(chunks), "took", time.Since(start))
	return len(chunks), nil
}

// IngestBatch ingests records with bounded parallelism. One document failing
// does not affect the others; a storage failure stops the rest of the batch.
func (p *Pipeline) IngestBatch(ctx context.Context, records []documentModel.DocumentRecord) BatchReport {
	report := BatchReport{Failures: make(map[string]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.settings.Workers)

	for _, record := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			n, err := p.Ingest(gctx, record)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Ingested++
				report.ChunksWritten += n
			case errors.Is(err, errorModel.ErrIngestInProgress):
				report.Skipped++
			case isStorage(err):
				report.Failed++
				report.Failures[record.ID] = err.Error()
				return err
			default:
				report.Failed++
				report.Failures[record.ID] = err.Error()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		report.Err = err
	} else if err := ctx.Err(); err != nil {
		report.Err = err
	}
	return report
}

// PendingRepairs lists what an interrupted or failed ingestion left behind:
// pending and failed records, and ingested records whose stored chunk count
// no longer matches.
func (p *Pipeline) PendingRepairs(ctx context.Context) ([]documentModel.DocumentRecord, error) {
	repairs, err := p.tracker.ListByStatus(ctx, documentModel.StatusPending, documentModel.StatusFailed)
	if err != nil {
		return nil, errorModel.Storage("list pending", err)
	}

	ingested, err := p.tracker.ListByStatus(ctx, documentModel.StatusIngested)
	if err != nil {
		return nil, errorModel.Storage("list ingested", err)
	}
	for _, record := range ingested {
		n, err := p.store.CountDocument(ctx, record.ID, record.ContentHash)
		if err != nil {
			return nil, err
		}
		if n != record.ChunkCount {
			p.logger.ForContext(ctx).Warn("stored chunks out of sync", "documentId", record.ID, "expected", record.ChunkCount, "found", n)
			repairs = append(repairs, record)
		}
	}
	return repairs, nil
}

func (p *Pipeline) alreadyStored(ctx context.Context, record documentModel.DocumentRecord) (bool, error) {
	if record.Status != documentModel.StatusIngested || record.ChunkCount <= 0 {
		return false, nil
	}
	n, err := p.store.CountDocument(ctx, record.ID, record.ContentHash)
	if err != nil {
		return false, err
	}
	return n == record.ChunkCount, nil
}

func (p *Pipeline) prepare(record documentModel.DocumentRecord) ([]documentModel.ChunkRecord, string, error) {
	extractor, err := extract.For(record.Format)
	if err != nil {
		return nil, "", &errorModel.ExtractionError{DocumentID: record.ID, Err: err}
	}
	data, err := p.readFile(record.LocalPath)
	if err != nil {
		return nil, "", &errorModel.ExtractionError{DocumentID: record.ID, Err: fmt.Errorf("reading %s: %w", record.LocalPath, err)}
	}
	documentHash := tracker.ContentHash(data)

	pages, err := extractor.Extract(data)
	if err != nil {
		return nil, "", &errorModel.ExtractionError{DocumentID: record.ID, Err: err}
	}

	chunks := p.chunk(record, documentHash, pages)
	if len(chunks) == 0 {
		return nil, "", &errorModel.ExtractionError{DocumentID: record.ID, Err: errors.New("no extractable text")}
	}
	return chunks, documentHash, nil
}

// chunk splits every page long enough to carry content. Chunk indexes run
// across the whole document.
func (p *Pipeline) chunk(record documentModel.DocumentRecord, documentHash string, pages []extract.Page) []documentModel.ChunkRecord {
	var chunks []documentModel.ChunkRecord
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if utf8.RuneCountInString(text) < p.settings.MinPageChars {
			continue
		}
		for _, piece := range splitTextIntoChunks(text, p.settings.ChunkSize, p.settings.ChunkOverlap) {
			sum := sha256.Sum256([]byte(piece))
			chunks = append(chunks, documentModel.ChunkRecord{
				DocumentID:   record.ID,
				ChunkIndex:   len(chunks),
				Page:         page.Number,
				Text:         piece,
				ContentHash:  hex.EncodeToString(sum[:]),
				DocumentHash: documentHash,
				Source:       record.DisplayName(),
				SourceURL:    record.SourceURL,
				Category:     record.Category,
			})
		}
	}
	return chunks
}

func (p *Pipeline) embed(ctx context.Context, documentID string, chunks []documentModel.ChunkRecord) error {
	for start := 0; start < len(chunks); start += p.settings.BatchSize {
		end := min(start+p.settings.BatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		var vectors [][]float32
		_, err := retry.Do(ctx, p.policy, errorModel.IsRetryable, func(ctx context.Context, _ int) error {
			var err error
			vectors, err = p.embedder.EmbedBatch(ctx, texts)
			return err
		})
		if err != nil {
			return &errorModel.EmbeddingError{DocumentID: documentID, Err: err}
		}
		if len(vectors) != len(texts) {
			return &errorModel.EmbeddingError{DocumentID: documentID, Err: fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts))}
		}
		for i, v := range vectors {
			if dim := p.embedder.Dimension(); dim > 0 && len(v) != dim {
				return &errorModel.EmbeddingError{DocumentID: documentID, Err: fmt.Errorf("vector has %d dimensions, expected %d", len(v), dim)}
			}
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// fail records extraction and embedding failures on the document so the
// repair pass picks it up again.
func (p *Pipeline) fail(ctx context.Context, record documentModel.DocumentRecord, cause error) error {
	log := p.logger.ForContext(ctx).With("documentId", record.ID)
	metrics.CountIngestion("failed", 0)

	if ctx.Err() != nil {
		log.Warn("ingestion interrupted", "error", cause)
		return cause
	}
	log.Error("ingestion failed", "error", cause)
	if err := p.tracker.MarkFailed(context.WithoutCancel(ctx), record.ID, cause.Error()); err != nil {
		log.Error("recording failure failed", "error", err)
		return errors.Join(cause, errorModel.Storage("mark failed", err))
	}
	return cause
}

func isStorage(err error) bool {
	var se *errorModel.StorageError
	return errors.As(err, &se)
}
