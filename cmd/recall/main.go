// Package main provides the recall command, the maintenance and query
// surface of the knowledge layer. The host assistant talks to the same
// packages in-process; this binary exists for recovery, inspection, and
// scripting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	appconfig "github.com/entrhq/recall/pkg/config"
	"github.com/entrhq/recall/pkg/knowledge"
)

const version = "0.1.0"

// Config holds the parsed command line.
type Config struct {
	ProjectRoot string
	Directory   string

	Add      bool
	Query    string
	Keywords string
	Rebuild  bool
	Stats    bool
	Watch    bool

	ShowVersion bool
}

func main() {
	cfg := parseFlags()

	if cfg.ShowVersion {
		fmt.Printf("recall v%s\n", version)
		return
	}

	if err := cfg.validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		cancel()
		log.Fatalf("recall: %v", err)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.ProjectRoot, "project", ".", "Project root for graph and search index")
	flag.StringVar(&cfg.Directory, "dir", "", "Directory whose fact log to write (-add); defaults to the project root")
	flag.BoolVar(&cfg.Add, "add", false, "Read a fact as JSON from stdin, append it, and link it project-wide")
	flag.StringVar(&cfg.Query, "query", "", "Print facts relevant to the given file path")
	flag.StringVar(&cfg.Keywords, "keywords", "", "Comma-separated keywords for -query (empty keeps all facts)")
	flag.BoolVar(&cfg.Rebuild, "rebuild", false, "Rebuild the search index and graph from all fact logs")
	flag.BoolVar(&cfg.Stats, "stats", false, "Print fact, node, edge, and keyword counts")
	flag.BoolVar(&cfg.Watch, "watch", false, "Watch fact logs and rebuild indexes on change")
	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")
	flag.Parse()

	return cfg
}

// validate ensures exactly one operation was requested.
func (c *Config) validate() error {
	ops := 0
	for _, set := range []bool{c.Add, c.Query != "", c.Rebuild, c.Stats, c.Watch} {
		if set {
			ops++
		}
	}
	if ops == 0 {
		return fmt.Errorf("one of -add, -query, -rebuild, -stats, or -watch is required")
	}
	if ops > 1 {
		return fmt.Errorf("only one of -add, -query, -rebuild, -stats, or -watch may be given")
	}
	return nil
}

func run(ctx context.Context, cfg *Config) error {
	settings, err := appconfig.Load(cfg.ProjectRoot)
	if err != nil {
		return err
	}

	switch {
	case cfg.Add:
		return runAdd(ctx, cfg, settings)
	case cfg.Query != "":
		return runQuery(cfg, settings)
	case cfg.Rebuild:
		return knowledge.NewIndexBuilder().RebuildAll(cfg.ProjectRoot)
	case cfg.Stats:
		return runStats(cfg)
	case cfg.Watch:
		return runWatch(ctx, cfg, settings)
	}
	return nil
}

// runAdd decodes one fact from stdin, persists it to the target directory's
// log, and links it against every stored fact in the project.
func runAdd(ctx context.Context, cfg *Config, settings *appconfig.Settings) error {
	var fact knowledge.Fact
	if err := json.NewDecoder(os.Stdin).Decode(&fact); err != nil {
		return fmt.Errorf("decode fact from stdin: %w", err)
	}
	if fact.ID == "" {
		fact.ID = knowledge.NewFactID()
	}
	if fact.Timestamp == "" {
		fact.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	dir := cfg.Directory
	if dir == "" {
		dir = cfg.ProjectRoot
	}

	store := knowledge.NewStore(
		knowledge.WithLockTimeout(settings.LockTimeout()),
		knowledge.WithLockRetryDelay(settings.LockRetryDelay()),
	)
	if err := store.Append(ctx, dir, &fact); err != nil {
		return err
	}
	if err := knowledge.NewLinker().LinkFact(ctx, &fact, cfg.ProjectRoot); err != nil {
		return err
	}

	fmt.Printf("stored %s (%d related)\n", fact.ID, len(fact.RelatedFacts))
	return nil
}

func runQuery(cfg *Config, settings *appconfig.Settings) error {
	var keywords []string
	for _, kw := range strings.Split(cfg.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	facts := knowledge.NewLoader().LoadRelevant(cfg.Query, keywords)
	facts = knowledge.SelectTop(facts, settings.MaxContextFacts)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(facts)
}

func runStats(cfg *Config) error {
	builder := knowledge.NewIndexBuilder()
	index, err := builder.BuildSearchIndex(cfg.ProjectRoot)
	if err != nil {
		return err
	}
	graph, err := builder.BuildGraph(cfg.ProjectRoot)
	if err != nil {
		return err
	}

	loader := knowledge.NewLoader()
	factCount := 0
	logCount := 0
	for _, logPath := range knowledge.DiscoverLogs(cfg.ProjectRoot) {
		logCount++
		factCount += len(loader.LoadAll(filepath.Dir(filepath.Dir(logPath))))
	}

	fmt.Printf("fact logs:  %d\n", logCount)
	fmt.Printf("facts:      %d\n", factCount)
	fmt.Printf("nodes:      %d\n", len(graph.Nodes))
	fmt.Printf("edges:      %d\n", len(graph.Edges))
	fmt.Printf("keywords:   %d\n", len(index.Keywords))
	return nil
}

func runWatch(ctx context.Context, cfg *Config, settings *appconfig.Settings) error {
	builder := knowledge.NewIndexBuilder()
	if err := builder.RebuildAll(cfg.ProjectRoot); err != nil {
		return err
	}

	watcher, err := knowledge.NewWatcher(cfg.ProjectRoot, builder, settings.WatchDebounce())
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Printf("watching %s (ctrl-c to stop)\n", cfg.ProjectRoot)
	<-ctx.Done()
	return nil
}
