package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"lexilegal/pkg/domain"
	"lexilegal/pkg/queue"
)

// process runs one document through extract → chunk → embed → store.
// Returning an error puts the job back on the queue within its retry
// budget; the document is left in the error state until a later attempt
// succeeds.
func (a *App) process(ctx context.Context, job queue.JobStatus) error {
	doc, ok, err := a.store.GetDocument(job.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if !ok {
		slog.Warn("processing job for missing document", "document_id", job.DocumentID)
		return nil
	}
	if err := a.store.SetDocumentStatus(doc.ID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if err := a.processDocument(ctx, doc); err != nil {
		_ = a.store.SetDocumentStatus(doc.ID, domain.StatusError, err.Error())
		return err
	}
	return nil
}

func (a *App) processDocument(ctx context.Context, doc domain.Document) error {
	rc, err := a.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	text, err := extractText(doc.FileName, data)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if err := a.store.SetDocumentText(doc.ID, text); err != nil {
		return fmt.Errorf("save extracted text: %w", err)
	}

	parts := chunkParagraphs(text, a.chunkSize)
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    part,
			CreatedAt:  now,
		})
	}
	kept, vectors := a.embedChunks(ctx, chunks)
	if err := a.store.ReplaceChunks(doc.ID, kept, vectors); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}
	if err := a.store.MarkDocumentProcessed(doc.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	slog.Info("document processed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"embedded", len(kept),
	)
	return nil
}

// embedChunks embeds in parallel with bounded concurrency. A chunk whose
// embedding fails (or whose content is blank) is skipped, never fatal.
func (a *App) embedChunks(ctx context.Context, chunks []domain.Chunk) ([]domain.Chunk, [][]float32) {
	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.embedConcurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			if strings.TrimSpace(chunk.Content) == "" {
				return nil
			}
			vec, err := a.embedder.EmbedText(gctx, chunk.Content)
			if err != nil {
				slog.Warn("skip chunk embedding",
					"document_id", chunk.DocumentID,
					"chunk_index", chunk.Index,
					"error", err,
				)
				return nil
			}
			vectors[i] = vec
			return nil
		})
	}
	_ = g.Wait()

	kept := make([]domain.Chunk, 0, len(chunks))
	keptVectors := make([][]float32, 0, len(chunks))
	for i, vec := range vectors {
		if len(vec) == 0 {
			continue
		}
		kept = append(kept, chunks[i])
		keptVectors = append(keptVectors, vec)
	}
	return kept, keptVectors
}
