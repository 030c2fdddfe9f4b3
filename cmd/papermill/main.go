// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/papermill"
	"github.com/poiesic/papermill/config"
	"github.com/poiesic/papermill/core"
	"github.com/poiesic/papermill/jobs"
	"github.com/urfave/cli/v2"
)

const pollInterval = 500 * time.Millisecond

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "papermill",
		Usage: "Segment, embed and summarize a corpus of papers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Value:   "papermill.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file with LLM_* and EMBED_* settings",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a document and its attachment files",
				ArgsUsage: "[file...]",
				Action:    addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Document title"},
					&cli.StringFlag{Name: "key", Usage: "External key, e.g. a citation key"},
					&cli.StringFlag{Name: "authors", Usage: "Author list"},
					&cli.StringFlag{Name: "abstract", Usage: "Abstract text"},
					&cli.IntFlag{Name: "year", Usage: "Publication year"},
					&cli.BoolFlag{Name: "paper", Usage: "Mark the document as a paper", Value: true},
				},
			},
			{
				Name:   "segment",
				Usage:  "Split paper attachments into overlapping segments",
				Action: segmentCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of documents (0 = all)"},
					&cli.IntFlag{Name: "segment-size", Usage: "Segment length in characters (default from config)"},
					&cli.IntFlag{Name: "overlap", Usage: "Characters shared by consecutive segments (default from config)"},
					&cli.BoolFlag{Name: "skip-existing", Usage: "Skip files that already have segments"},
				},
			},
			{
				Name:   "embed",
				Usage:  "Embed segments into the vector store",
				Action: embedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of segments (0 = all)"},
					&cli.IntFlag{Name: "batch-size", Usage: "Segments per embedding request (default from config)"},
					&cli.BoolFlag{Name: "skip-existing", Usage: "Skip segments whose vectors are stored"},
				},
			},
			{
				Name:   "summarize",
				Usage:  "Summarize papers with the chat model",
				Action: summarizeCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of documents (0 = all)"},
					&cli.IntFlag{Name: "context-chars", Usage: "Character budget for excerpts (default from config)"},
					&cli.BoolFlag{Name: "skip-existing", Usage: "Skip documents that already have a summary"},
					&cli.BoolFlag{Name: "dry-run", Usage: "Log results without storing them"},
				},
			},
			{
				Name:   "dedupe",
				Usage:  "Remove duplicate attachments",
				Action: dedupeCommand,
			},
			{
				Name:   "stats",
				Usage:  "Print pipeline coverage as JSON",
				Action: statsCommand,
			},
			{
				Name:      "clear-summary",
				Usage:     "Delete a document's summaries and tags",
				ArgsUsage: "<document-id>",
				Action:    clearSummaryCommand,
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func openEngine(c *cli.Context) (*papermill.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	return papermill.Open(cfg)
}

func addCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	doc := &core.Document{
		Title:    c.String("title"),
		Key:      c.String("key"),
		Authors:  c.String("authors"),
		Abstract: c.String("abstract"),
		Year:     c.Int("year"),
		IsPaper:  c.Bool("paper"),
	}
	doc, atts, err := engine.AddDocument(c.Context, doc, c.Args().Slice()...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "added document %d with %d attachments\n", doc.Id, len(atts))
	return nil
}

func segmentCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	params := engine.SegmentationDefaults()
	params.Limit = c.Int("limit")
	params.SkipExisting = c.Bool("skip-existing")
	if c.IsSet("segment-size") {
		params.SegmentSize = c.Int("segment-size")
	}
	if c.IsSet("overlap") {
		params.Overlap = c.Int("overlap")
	}

	id, err := engine.StartSegmentation(params)
	if err != nil {
		return err
	}
	return followJob(c, engine, id)
}

func embedCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	params := engine.EmbeddingDefaults()
	params.Limit = c.Int("limit")
	params.SkipExisting = c.Bool("skip-existing")
	if c.IsSet("batch-size") {
		params.BatchSize = c.Int("batch-size")
	}

	id, err := engine.StartEmbedding(params)
	if err != nil {
		return err
	}
	return followJob(c, engine, id)
}

func summarizeCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	params := engine.SummarizationDefaults()
	params.Limit = c.Int("limit")
	params.SkipExisting = c.Bool("skip-existing")
	params.DryRun = c.Bool("dry-run")
	if c.IsSet("context-chars") {
		params.ContextChars = c.Int("context-chars")
	}

	id, err := engine.StartSummarization(params)
	if err != nil {
		return err
	}
	return followJob(c, engine, id)
}

// followJob renders progress until the job's workload returns. An interrupt
// cancels the job; the workload still runs to its next checkpoint.
func followJob(c *cli.Context, engine *papermill.Engine, id string) error {
	logger := slog.Default().With("job_id", id)

	done := make(chan *jobs.Status, 1)
	errc := make(chan error, 1)
	go func() {
		st, err := engine.WaitJob(context.Background(), id)
		if err != nil {
			errc <- err
			return
		}
		done <- st
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	progress := newProgressTracker(c.App.ErrWriter)
	progress.Start()

	for {
		select {
		case <-ticker.C:
			st, err := engine.Status(id)
			if err != nil {
				return err
			}
			progress.Update(st)
		case <-sigs:
			logger.Info("interrupt received, cancelling job")
			if err := engine.CancelJob(id); err != nil {
				return err
			}
		case err := <-errc:
			return err
		case st := <-done:
			elapsed := progress.Elapsed()
			progress.Finish(st)
			logger.Info("job complete", "kind", st.Kind, "elapsed", elapsed.Round(time.Millisecond))
			return exitError(st)
		}
	}
}

// exitError turns a non-zero job exit code into an error.
func exitError(st *jobs.Status) error {
	if st.ExitCode == nil || *st.ExitCode == jobs.ExitSuccess {
		return nil
	}
	if *st.ExitCode == jobs.ExitCancelled {
		return fmt.Errorf("%s job %s cancelled", st.Kind, st.ID)
	}
	return fmt.Errorf("%s job %s failed with exit code %d: %s", st.Kind, st.ID, *st.ExitCode, st.LastMessage)
}

func dedupeCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	removed, err := engine.Dedupe(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "removed %d duplicate attachments\n", removed)
	return nil
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(c.Context)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func clearSummaryCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("clear-summary requires exactly one document id")
	}
	id, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid document id %q: %w", c.Args().First(), err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	summaries, tags, err := engine.ClearSummary(c.Context, core.ID(id))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "deleted %d summaries and %d tags from document %d\n", summaries, tags, id)
	return nil
}
