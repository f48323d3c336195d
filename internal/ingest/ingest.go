// Package ingest turns a document source into a freshly built vector index.
package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"seju-chat/internal/chunker"
	"seju-chat/internal/config"
	"seju-chat/internal/embedding"
	"seju-chat/internal/models"
	"seju-chat/internal/parser"
	"seju-chat/internal/vectorstore"
)

// Replacer is the slice of the vector index the pipeline depends on.
type Replacer interface {
	Replace(ctx context.Context, entries []vectorstore.Entry) error
}

// UploadRecorder persists per-file upload metadata. Optional.
type UploadRecorder interface {
	Record(ctx context.Context, filename string) (string, error)
}

// Pipeline reads documents, chunks and embeds them, then atomically
// replaces the vector index with the result. A rebuild is a maintenance
// operation; it is not meant to run concurrently with itself.
type Pipeline struct {
	chunker         *chunker.Chunker
	embedder        embeddings.Embedder
	store           Replacer
	uploads         UploadRecorder
	parseOpts       parser.Options
	continueOnError bool
}

func New(cfg *config.RAGConfig, embedder embeddings.Embedder, store Replacer, uploads UploadRecorder) (*Pipeline, error) {
	c, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		chunker:  c,
		embedder: embedder,
		store:    store,
		uploads:  uploads,
		parseOpts: parser.Options{
			CSVTextColumn:  cfg.CSVTextColumn,
			JSONFieldPath:  cfg.JSONFieldPath,
			JSONLFieldPath: cfg.JSONLFieldPath,
		},
		continueOnError: cfg.ContinueOnError,
	}, nil
}

// Ingest rebuilds the index from path (a file or a directory). It returns
// the number of chunks indexed. By default any single-file failure,
// including an unsupported extension, aborts the whole rebuild before
// anything is committed; continue_on_error turns those into skips.
func (p *Pipeline) Ingest(ctx context.Context, path string) (int, error) {
	files, err := collectFiles(path)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no documents found under %s", path)
	}

	var chunks []models.Chunk
	var ingested []string
	for _, file := range files {
		fileChunks, err := p.chunkFile(file)
		if err != nil {
			if p.continueOnError {
				log.Warn().Err(err).Str("file", file).Msg("skipping document")
				continue
			}
			return 0, fmt.Errorf("ingest %s: %w", file, err)
		}
		chunks = append(chunks, fileChunks...)
		ingested = append(ingested, file)
	}

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vectors, err := embedding.EmbedTexts(ctx, p.embedder, texts)
	if err != nil {
		return 0, err
	}

	entries := make([]vectorstore.Entry, len(chunks))
	for i, ch := range chunks {
		metadata := map[string]string{models.MetaSource: ch.Source}
		if ch.PageNumber > 0 {
			metadata[models.MetaPage] = strconv.Itoa(ch.PageNumber)
		}
		entries[i] = vectorstore.Entry{
			ID:        fmt.Sprintf("%s-%d", ch.Source, ch.ChunkID),
			Text:      ch.Content,
			Embedding: vectors[i],
			Metadata:  metadata,
		}
	}

	if err := p.store.Replace(ctx, entries); err != nil {
		return 0, err
	}
	log.Info().Int("chunks", len(entries)).Int("files", len(ingested)).Msg("vector index rebuilt")

	p.recordUploads(ctx, ingested)
	return len(entries), nil
}

// chunkFile parses one document and splits every section into chunks.
// ChunkID is the per-file sequence number, Offset the byte offset of the
// chunk within its section.
func (p *Pipeline) chunkFile(file string) ([]models.Chunk, error) {
	sections, err := parser.Parse(file, p.parseOpts)
	if err != nil {
		return nil, err
	}

	source := filepath.Base(file)
	var chunks []models.Chunk
	seq := 0
	for _, section := range sections {
		for _, ch := range p.chunker.Split(section.Content) {
			chunks = append(chunks, models.Chunk{
				Content:    ch.Text,
				Source:     source,
				PageNumber: section.Page,
				ChunkID:    seq,
				Offset:     ch.Start,
			})
			seq++
		}
	}
	return chunks, nil
}

// recordUploads is best-effort bookkeeping; a metadata write failure never
// undoes a completed rebuild.
func (p *Pipeline) recordUploads(ctx context.Context, files []string) {
	if p.uploads == nil {
		return
	}
	for _, file := range files {
		if _, err := p.uploads.Record(ctx, filepath.Base(file)); err != nil {
			log.Warn().Err(err).Str("file", file).Msg("failed to record upload")
		}
	}
}

// collectFiles resolves path to the ordered list of documents to ingest.
// Hidden files are skipped; everything else is the parser's problem.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != path && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
