package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	_ "github.com/datascienceChris/datahub/internal/connector/file"
	_ "github.com/datascienceChris/datahub/internal/connector/jdbc"
	_ "github.com/datascienceChris/datahub/internal/connector/kafka"
	_ "github.com/datascienceChris/datahub/internal/connector/minio"
	_ "github.com/datascienceChris/datahub/internal/connector/pgcatalog"
	"github.com/datascienceChris/datahub/internal/endpoint"
	"github.com/datascienceChris/datahub/internal/pipeline"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

// Options contains run options that can be set via command-line flags or
// INGEST_* environment variables.
type Options struct {
	Recipe         string
	RunID          string
	Timeout        time.Duration
	Concurrency    int
	StrictWarnings bool
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		os.Exit(runIngest(os.Args[2:]))
	case "check":
		os.Exit(runCheck(os.Args[2:]))
	case "list":
		runList()
	case "version":
		fmt.Println(Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ingest <run|check|list|version> [flags] [recipe.yml ...]")
}

func parseFlags(name string, args []string) (Options, []string) {
	var opts Options
	fs := flag.NewFlagSet("ingest "+name, flag.ExitOnError)
	fs.StringVar(&opts.Recipe, "recipe", "", "Path to a recipe YAML file (more may follow as arguments)")
	fs.StringVar(&opts.RunID, "run-id", "", "Run id override; applies when a single recipe is given")
	fs.DurationVar(&opts.Timeout, "timeout", 0, "Maximum duration of a run (0 means no limit)")
	fs.IntVar(&opts.Concurrency, "concurrency", 2, "Max. number of recipes run in parallel")
	fs.BoolVar(&opts.StrictWarnings, "strict-warnings", false, "Exit with an error when a run finishes with warnings")

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("INGEST")); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(2)
	}
	var recipes []string
	if opts.Recipe != "" {
		recipes = append(recipes, opts.Recipe)
	}
	recipes = append(recipes, fs.Args()...)
	if len(recipes) == 0 {
		fmt.Fprintln(os.Stderr, "No recipe given.")
		usage()
		os.Exit(2)
	}
	return opts, recipes
}

func loadRecipes(opts Options, paths []string) ([]*pipeline.Recipe, error) {
	recipes := make([]*pipeline.Recipe, 0, len(paths))
	for _, path := range paths {
		r, err := pipeline.LoadRecipe(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		recipes = append(recipes, r)
	}
	if opts.RunID != "" && len(recipes) == 1 {
		recipes[0].RunID = opts.RunID
	}
	return recipes, nil
}

func runIngest(args []string) int {
	opts, paths := parseFlags("run", args)
	recipes, err := loadRecipes(opts, paths)
	if err != nil {
		log.Printf("Failed to load recipe: %v", err)
		return 1
	}

	var pipelines []*pipeline.Pipeline
	for i, r := range recipes {
		p, err := pipeline.Create(r)
		if err != nil {
			log.Printf("Failed to create pipeline for %s: %v", paths[i], err)
			for _, created := range pipelines {
				created.Close()
			}
			return 1
		}
		pipelines = append(pipelines, p)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	runErr := pipeline.RunConcurrently(ctx, opts.Concurrency, pipelines...)

	code := 0
	if runErr != nil {
		log.Printf("Run error: %v", runErr)
		code = 1
	}
	for _, p := range pipelines {
		fmt.Print(p.Summary())
		if err := p.RaiseOnFailure(); err != nil {
			log.Print(err)
			code = 1
		} else if opts.StrictWarnings && p.Status() == pipeline.StatusWarning {
			log.Printf("Run %s finished with warnings (strict mode)", p.RunID)
			code = 1
		}
	}
	return code
}

// runCheck opens and closes the source and sink of each recipe without
// extracting anything.
func runCheck(args []string) int {
	opts, paths := parseFlags("check", args)
	recipes, err := loadRecipes(opts, paths)
	if err != nil {
		log.Printf("Failed to load recipe: %v", err)
		return 1
	}
	code := 0
	for i, r := range recipes {
		p, err := pipeline.Create(r)
		if err != nil {
			fmt.Printf("%s: FAILED: %v\n", paths[i], err)
			code = 1
			continue
		}
		if err := p.Close(); err != nil {
			fmt.Printf("%s: FAILED on close: %v\n", paths[i], err)
			code = 1
			continue
		}
		fmt.Printf("%s: ok (%s -> %s)\n", paths[i], r.Source.Type, r.Sink.Type)
	}
	return code
}

func runList() {
	reg := endpoint.DefaultRegistry()
	fmt.Printf("sources: %s\n", strings.Join(reg.SourceTypes(), ", "))
	fmt.Printf("sinks:   %s\n", strings.Join(reg.SinkTypes(), ", "))
}
