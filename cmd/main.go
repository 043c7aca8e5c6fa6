package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/joho/godotenv/autoload"
	elog "github.com/labstack/gommon/log"

	"plotweave/pkg/archive"
	"plotweave/pkg/asp"
	"plotweave/pkg/batch"
	"plotweave/pkg/config"
	"plotweave/pkg/eval"
	"plotweave/pkg/inference"
	"plotweave/pkg/narrative"
	"plotweave/pkg/outline"
	"plotweave/pkg/prompt"
	"plotweave/pkg/server"
	"plotweave/pkg/utils"
)

const usage = `usage: plotweave [-config file] [-dry-run] <command> [flags]

commands:
  outlines   solve the plot program and write the outline file
  stories    generate guided and unguided story batches
  eval       score archived batches for homogeneity
  serve      run the HTTP API
`

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer done()

	configPath := flag.String("config", "", "config file (default $PLOTWEAVE_CONFIG or "+config.DefaultPath+")")
	dryRun := flag.Bool("dry-run", false, "use the offline echo provider")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *dryRun {
		os.Setenv("PLOTWEAVE_PROVIDER", "echo")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("loading config", "error", err)
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "outlines":
		err = runOutlines(ctx, cfg, args)
	case "stories":
		err = runStories(ctx, cfg, args)
	case "eval":
		err = runEval(ctx, cfg, args)
	case "serve":
		err = runServe(ctx, cfg, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(cmd+" failed", "error", err)
	}
}

func runOutlines(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("outlines", flag.ExitOnError)
	models := fset.Int("models", cfg.Solver.Models, "models to enumerate (0 = all)")
	out := fset.String("out", cfg.Paths.Outlines, "outline file to write")
	fset.Parse(args)

	solver := &asp.Clingo{
		Binary:   cfg.Solver.Binary,
		Programs: cfg.Solver.Programs,
		Models:   *models,
		Args:     cfg.Solver.Args,
	}
	outlines, err := outline.Collect(ctx, solver, outline.NewCompiler(), log.Default())
	switch {
	case errors.Is(err, asp.ErrUnsatisfiable):
		log.Warn("plot program is unsatisfiable, writing no outlines", "programs", solver.Programs)
		outlines = nil
	case err != nil:
		return err
	}
	if err := outline.SaveFile(*out, outlines); err != nil {
		return err
	}
	log.Info("wrote outlines", "path", *out, "count", len(outlines))
	return nil
}

func loadTable(cfg *config.Config) (*prompt.Table, error) {
	if cfg.Paths.Instructions == "" {
		return prompt.DefaultTable(), nil
	}
	return prompt.LoadTable(cfg.Paths.Instructions)
}

func runStories(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("stories", flag.ExitOnError)
	n := fset.Int("n", cfg.Batch.Stories, "stories per premise")
	concurrency := fset.Int("concurrency", cfg.Batch.Concurrency, "jobs in flight")
	premises := fset.String("premises", strings.Join(cfg.Batch.Premises, ";"), "semicolon separated premises")
	seed := fset.Uint64("seed", cfg.Batch.Seed, "random seed (0 = random)")
	fset.Parse(args)

	outlines, err := outline.LoadFile(cfg.Paths.Outlines)
	if err != nil {
		return fmt.Errorf("loading outlines: %w", err)
	}
	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	inf, err := inference.New(ctx, cfg.AI)
	if err != nil {
		return err
	}

	var r *rand.Rand
	if *seed != 0 {
		r = rand.New(rand.NewPCG(*seed, *seed))
	}
	runner := &batch.Runner{
		Compiler:    prompt.NewCompiler(table, r),
		Writer:      narrative.NewWriter(inf),
		Concurrency: *concurrency,
	}
	if cfg.Paths.Database != "" {
		db, err := archive.OpenSQLite(cfg.Paths.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		runner.OnPair = func(p batch.Pair) {
			if err := db.SavePair(ctx, p); err != nil {
				log.Warn("failed archiving pair", "job", p.Job.ID, "error", err)
			}
		}
	}

	dir := archive.Dir{Root: cfg.Paths.Stories}
	for _, premise := range strings.Split(*premises, ";") {
		if premise = strings.TrimSpace(premise); premise == "" {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		jobs, err := batch.Jobs(premise, outlines, *n, r)
		if err != nil {
			return err
		}
		pairs := runner.Run(ctx, jobs)
		path, err := dir.Save(premise, pairs)
		if err != nil {
			return fmt.Errorf("saving %q: %w", premise, err)
		}
		log.Info("saved batch", "premise", premise, "dir", path)
	}
	return nil
}

func runEval(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("eval", flag.ExitOnError)
	root := fset.String("dir", cfg.Paths.Stories, "archive root")
	method := fset.String("method", cfg.Eval.Method, "embedding or lexical")
	out := fset.String("out", "", "report file (default <dir>/homogeneity.json)")
	fset.Parse(args)

	var embedder eval.Embedder
	if *method == eval.MethodEmbedding {
		key := cfg.OpenAIKey()
		if key == "" {
			return errors.New("embedding evaluation needs OPENAI_API_KEY; use -method lexical")
		}
		embedder = eval.NewOpenAIEmbedder(key, cfg.Eval.EmbeddingModel)
	}

	batches, err := archive.LoadBatches(*root)
	if err != nil {
		return err
	}
	var reports []eval.Report
	for _, b := range batches {
		for _, g := range b.Groups() {
			report, err := eval.Evaluate(ctx, *method, embedder, b.Premise, g.Guided, g.Unguided)
			if err != nil {
				return fmt.Errorf("%s: %w", b.Dir, err)
			}
			log.Info("scored batch", "premise", b.Premise, "scenes", report.Scenes, "stories", report.Stories,
				"guided", average(report.Guided), "unguided", average(report.Unguided))
			reports = append(reports, report)
		}
	}
	if *out == "" {
		*out = filepath.Join(*root, "homogeneity.json")
	}
	return utils.Save(*out, reports)
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func runServe(ctx context.Context, cfg *config.Config, args []string) error {
	fset := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fset.String("port", cfg.Server.Port, "listen port")
	fset.Parse(args)

	inf, err := inference.New(ctx, cfg.AI)
	if err != nil {
		return err
	}
	table, err := loadTable(cfg)
	if err != nil {
		return err
	}
	opts := server.Options{
		Inferencer: inf,
		Prompts:    prompt.NewCompiler(table, nil),
		Logger:     log.Default(),
	}

	switch outlines, err := outline.LoadFile(cfg.Paths.Outlines); {
	case err == nil:
		opts.Outlines = outlines
		log.Info("loaded outlines", "count", len(outlines))
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no outline file, requests must carry an outline", "path", cfg.Paths.Outlines)
	default:
		return err
	}
	if key := cfg.OpenAIKey(); key != "" {
		opts.Embedder = eval.NewOpenAIEmbedder(key, cfg.Eval.EmbeddingModel)
	}
	if cfg.Paths.Database != "" {
		if opts.Archive, err = archive.OpenSQLite(cfg.Paths.Database); err != nil {
			return err
		}
	}

	srv := server.NewServer(ctx, opts)
	srv.Echo.Logger.SetLevel(elog.INFO)
	if cfg.LogLevel == "debug" {
		srv.Echo.Logger.SetLevel(elog.DEBUG)
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown", "error", err)
		}
		close(finishedShutDown)
	}()

	if err := srv.Start(":" + *port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-finishedShutDown
	return nil
}
