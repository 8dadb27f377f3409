package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"npimatch/internal/bootstrap"
	"npimatch/internal/platform/config"
	"npimatch/internal/platform/logger"
)

type resolveOptions struct {
	input        string
	output       string
	delimiter    string
	encoding     string
	format       string
	states       []string
	preferred    string
	strictness   string
	limit        int
	workers      int
	cacheBackend string
	cacheTTL     string
	directoryURL string
	quiet        bool
}

func newResolveCommand(root *rootOptions) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve a roster file and write one row per candidate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root, opts)
			if err != nil {
				return err
			}
			return runResolve(cmd, cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "-", "Roster file (- for stdin)")
	flags.StringVarP(&opts.output, "output", "o", "-", "Output file (- for stdout)")
	flags.StringVar(&opts.delimiter, "delimiter", "auto", "Input delimiter: auto, tab or comma")
	flags.StringVar(&opts.encoding, "encoding", "auto", "Input encoding: auto, utf-8 or cp1252")
	flags.StringVarP(&opts.format, "format", "f", formatCSV, "Output format: csv, json or table")
	flags.StringSliceVar(&opts.states, "state", nil, "Jurisdiction filter, repeatable or comma separated")
	flags.StringVar(&opts.preferred, "preferred", "", "Jurisdiction surfaced first within each strategy")
	flags.StringVar(&opts.strictness, "strictness", "", "Loosest strategy to try (best, good, potential, limited_potential)")
	flags.IntVar(&opts.limit, "limit", 0, "Maximum candidates per identity")
	flags.IntVar(&opts.workers, "workers", 0, "Identities resolved concurrently")
	flags.StringVar(&opts.cacheBackend, "cache", "", "Directory cache backend: memory, redis or none")
	flags.StringVar(&opts.cacheTTL, "cache-ttl", "", "Directory cache entry lifetime")
	flags.StringVar(&opts.directoryURL, "directory-url", "", "Registry API base URL")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the batch summary")

	return cmd
}

// loadConfig layers defaults, the config file, then explicitly set flags.
func loadConfig(cmd *cobra.Command, root *rootOptions, opts *resolveOptions) (config.Config, error) {
	cfg, err := config.Load(root.configPath)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if root.logLevel != "" {
		cfg.LogLevel = root.logLevel
	}
	if flags.Changed("state") {
		cfg.Resolution.Jurisdictions = opts.states
		if !flags.Changed("preferred") {
			cfg.Resolution.PreferredJurisdiction = ""
		}
	}
	if flags.Changed("preferred") {
		cfg.Resolution.PreferredJurisdiction = opts.preferred
	}
	if flags.Changed("strictness") {
		cfg.Resolution.MaxStrictness = opts.strictness
	}
	if flags.Changed("limit") {
		cfg.Resolution.Limit = opts.limit
	}
	if flags.Changed("workers") {
		cfg.Resolution.Concurrency = opts.workers
	}
	if flags.Changed("cache") {
		cfg.Cache.Backend = opts.cacheBackend
	}
	if flags.Changed("cache-ttl") {
		ttl, err := parseDuration("cache-ttl", opts.cacheTTL)
		if err != nil {
			return cfg, err
		}
		cfg.Cache.TTL = ttl
	}
	if flags.Changed("directory-url") {
		cfg.Directory.URL = opts.directoryURL
	}
	return cfg, nil
}

func runResolve(cmd *cobra.Command, cfg config.Config, opts *resolveOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.New(cmd.ErrOrStderr(), cfg.LogLevel, logger.FormatText)

	in, closeIn, err := openInput(cmd, opts.input)
	if err != nil {
		return err
	}
	identities, err := readRoster(in, opts.delimiter, opts.encoding)
	closeIn()
	if err != nil {
		return err
	}

	resolver, err := bootstrap.New(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer resolver.Close()

	b, err := resolver.Service.Resolve(ctx, identities, resolver.Service.Defaults())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd, opts.output)
	if err != nil {
		return err
	}
	if err := writeResults(out, opts.format, b); err != nil {
		closeOut()
		return fmt.Errorf("write results: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	if !opts.quiet {
		writeSummary(cmd.ErrOrStderr(), b)
	}
	return nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open roster: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}
