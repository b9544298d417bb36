package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/akolanti/AskStan/internal/config"
	"github.com/akolanti/AskStan/internal/domain/apperror"
	"github.com/akolanti/AskStan/internal/rag"
	"github.com/akolanti/AskStan/internal/rag/embedding"
	"github.com/akolanti/AskStan/internal/rag/ingest"
	"github.com/akolanti/AskStan/internal/rag/llm"
	"github.com/akolanti/AskStan/internal/rag/providers"
	"github.com/akolanti/AskStan/internal/rag/vectorDB"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
)

type queryList []string

func (q *queryList) String() string { return strings.Join(*q, ", ") }

func (q *queryList) Set(v string) error {
	*q = append(*q, v)
	return nil
}

type options struct {
	configPath   string
	file         string
	drop         bool
	batch        int
	chunkSize    int
	chunkOverlap int
	watchDir     string
	answer       bool
	queries      queryList
}

var (
	okLine   = color.New(color.FgGreen).PrintfFunc()
	warnLine = color.New(color.FgYellow).PrintfFunc()
	errLine  = color.New(color.FgRed, color.Bold).PrintfFunc()
	header   = color.New(color.FgCyan, color.Bold).PrintlnFunc()
)

func main() {
	_ = godotenv.Load()
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		errLine("✗ %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", os.Getenv("ASKSTAN_CONFIG"), "optional YAML config file")
	flag.StringVar(&o.file, "file", "", "document or folder of documents to ingest")
	flag.BoolVar(&o.drop, "drop", false, "drop the collection before ingesting")
	flag.IntVar(&o.batch, "batch", 0, "embedding batch size, overrides INGEST_BATCH_SIZE")
	flag.IntVar(&o.chunkSize, "chunk-size", 0, "chunk size in characters, overrides CHUNK_SIZE")
	flag.IntVar(&o.chunkOverlap, "chunk-overlap", -1, "chunk overlap in characters, overrides CHUNK_OVERLAP")
	flag.StringVar(&o.watchDir, "watch", "", "keep running and ingest documents written to this folder")
	flag.BoolVar(&o.answer, "answer", false, "also generate an answer for every -query")
	flag.Var(&o.queries, "query", "sample question to run after ingestion, repeatable")
	flag.Parse()
	return o
}

func run(ctx context.Context, o options) error {
	cfg, err := config.Load(o.configPath, config.ScopeIngest)
	if err != nil {
		return err
	}
	level, _ := config.ParseLogLevel(cfg.Log.Level)
	logger_i.Init(level, cfg.IsProd())

	if o.file == "" && o.watchDir == "" && len(o.queries) == 0 {
		flag.Usage()
		return apperror.Ingest("parse flags", errors.New("one of -file, -watch or -query is required"))
	}
	applyOverrides(cfg, o)

	set := providers.New(cfg)
	store, err := set.VectorStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	embedder, err := set.Embedder(ctx)
	if err != nil {
		return err
	}

	header("Connection test")
	if err := connectionTest(ctx, store, embedder, cfg); err != nil {
		return err
	}

	if o.drop {
		if err := store.Drop(ctx); err != nil {
			return err
		}
		warnLine("! dropped collection %s\n", cfg.Vector.Collection)
	}

	if o.file != "" {
		files, err := collectFiles(o.file)
		if err != nil {
			return err
		}
		for _, path := range files {
			if err := ingestOne(ctx, store, embedder, cfg, path); err != nil {
				return err
			}
		}
		printCollection(ctx, store)
	}

	if len(o.queries) > 0 {
		if err := sampleQueries(ctx, set, store, embedder, cfg, o); err != nil {
			return err
		}
	}

	if o.watchDir != "" {
		header("Watching " + o.watchDir)
		return ingest.Watch(ctx, o.watchDir, 2*time.Second, func(ctx context.Context, path string) error {
			return ingestOne(ctx, store, embedder, cfg, path)
		})
	}
	return nil
}

func applyOverrides(cfg *config.Config, o options) {
	if o.batch > 0 {
		cfg.Ingest.BatchSize = o.batch
	}
	if o.chunkSize > 0 {
		cfg.Ingest.ChunkSize = o.chunkSize
	}
	if o.chunkOverlap >= 0 {
		cfg.Ingest.ChunkOverlap = o.chunkOverlap
	}
}

func connectionTest(ctx context.Context, store vectorDB.Store, embedder embedding.Embedder, cfg *config.Config) error {
	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	okLine("✓ %s reachable, collection %q exists=%t\n", cfg.Vector.Backend, stats.Name, stats.Exists)

	vector, err := embedder.GetEmbedding(ctx, "connection test")
	if err != nil {
		return err
	}
	okLine("✓ %s embeddings ok, dimension %d\n", cfg.LLM.EmbeddingProvider, len(vector))
	return nil
}

// collectFiles expands a folder into its supported documents.
func collectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, apperror.Ingest("stat input", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, apperror.Ingest("read input folder", err)
	}
	var files []string
	for _, e := range entries {
		full := filepath.Join(path, e.Name())
		if !e.IsDir() && ingest.IsSupported(full) {
			files = append(files, full)
		}
	}
	if len(files) == 0 {
		return nil, apperror.Ingest("read input folder", fmt.Errorf("no supported documents in %s", path))
	}
	return files, nil
}

func ingestOne(ctx context.Context, store vectorDB.Store, embedder embedding.Embedder, cfg *config.Config, path string) error {
	header("Ingesting " + filepath.Base(path))

	var bar *progressbar.ProgressBar
	pipeline := ingest.NewPipeline(store, embedder, ingest.Options{
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		BatchSize:    cfg.Ingest.BatchSize,
		Progress: func(done, total int) {
			if bar == nil {
				bar = getProgressBar(total, "Embedding chunks")
			}
			_ = bar.Set(done)
		},
	})

	result, err := pipeline.IngestFile(ctx, path, "")
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	s := result.Stats
	okLine("✓ %s: %d pages, %d chunks, %d chars\n", result.Document.Name, s.Pages, s.TotalChunks, s.TotalChars)
	fmt.Printf("  chunk size avg %.1f, min %d, max %d, embedding dimension %d\n", s.AvgChunkSize, s.MinChunkSize, s.MaxChunkSize, s.EmbeddingDim)
	return nil
}

func printCollection(ctx context.Context, store vectorDB.Store) {
	stats, err := store.Stats(ctx)
	if err != nil {
		warnLine("! collection info unavailable: %v\n", err)
		return
	}
	header("Collection")
	fmt.Printf("  name %s, entities %d, dimension %d\n", stats.Name, stats.Entities, stats.Dimension)
}

func sampleQueries(ctx context.Context, set *providers.Set, store vectorDB.Store, embedder embedding.Embedder, cfg *config.Config, o options) error {
	retriever := rag.NewRetriever(embedder, store, rag.RetrievalOptionsFromConfig(cfg.RAG))

	var svc rag.Service
	if o.answer {
		provider, err := set.LLM(ctx)
		if err != nil {
			return err
		}
		svc = rag.NewService(retriever, provider, rag.Options{
			SystemPrompt: cfg.Chat.SystemPrompt,
			Temperature:  cfg.LLM.Temperature,
			MaxTokens:    cfg.LLM.MaxTokens,
		})
	}

	for _, q := range o.queries {
		header("Query: " + q)
		res, err := retriever.Retrieve(ctx, q, 0)
		if err != nil {
			return err
		}
		if res.Degraded {
			warnLine("! retrieval degraded, see logs\n")
		}
		for _, s := range res.Sources {
			fmt.Printf("  [%d] %s p.%d score %.3f  %s\n", s.DocumentIndex, s.Source, s.Page, s.Score, s.Preview)
		}
		if len(res.Sources) == 0 {
			warnLine("! no documents above the score threshold\n")
		}

		if svc == nil {
			continue
		}
		ans, err := svc.Answer(ctx, nil, q)
		if err != nil {
			return err
		}
		text, err := llm.Collect(ans.Fragments)
		if err != nil {
			return err
		}
		fmt.Println(text)
	}
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
