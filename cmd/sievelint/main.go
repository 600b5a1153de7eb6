package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/migadu/sievelint/cache"
	"github.com/migadu/sievelint/config"
	"github.com/migadu/sievelint/logger"
	"github.com/migadu/sievelint/pkg/errors"
	"github.com/migadu/sievelint/pkg/metrics"
	"github.com/migadu/sievelint/server/httpapi"
	"github.com/migadu/sievelint/server/sievecheck"
)

// Version information, injected at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "sievelint.toml"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so that tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	errorHandler := errors.NewErrorHandlerWithOutput(stderr)
	cfg := config.NewDefaultConfig()

	fs := flag.NewFlagSet("sievelint", flag.ContinueOnError)
	fs.SetOutput(stderr)
	showVersion := fs.Bool("version", false, "Show version information and exit")
	fs.BoolVar(showVersion, "v", false, "Show version information and exit")
	configPath := fs.String("config", defaultConfigPath, "Path to TOML configuration file")
	serve := fs.Bool("serve", false, "Run the HTTP API instead of checking files")
	asJSON := fs.Bool("json", false, "Print reports as JSON")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sievelint [flags] [file ...]\n\nChecks sieve scripts. Use - or no file to read standard input.\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return errors.ExitOK
		}
		return errors.ExitUsage
	}

	if *showVersion {
		fmt.Fprintf(stdout, "sievelint version %s (commit: %s, built at: %s)\n", version, commit, date)
		return errors.ExitOK
	}

	if err := config.LoadConfigFromFile(*configPath, &cfg); err != nil {
		if !os.IsNotExist(err) || *configPath != defaultConfigPath {
			errorHandler.ConfigError(*configPath, err)
			return errorHandler.WaitForExit()
		}
	}
	if err := cfg.Validate(); err != nil {
		errorHandler.ValidationError("configuration", err)
		return errorHandler.WaitForExit()
	}

	logFile, err := logger.Initialize(cfg.Logging)
	if err != nil {
		errorHandler.ValidationError("logging.output", err)
		return errorHandler.WaitForExit()
	}
	if logFile != nil {
		defer logFile.Close()
	}

	source := "cli"
	if *serve {
		source = "http"
	}
	resultCache, checker, err := newChecker(cfg, source)
	if err != nil {
		errorHandler.FatalError("create checker", err)
		return errorHandler.WaitForExit()
	}
	if resultCache != nil {
		defer resultCache.Close()
	}

	if *serve {
		return serveAPI(cfg, checker, resultCache, errorHandler)
	}
	return checkFiles(fs.Args(), checker, *asJSON, stdin, stdout, stderr)
}

// newChecker builds the checker and, when enabled, its result cache.
func newChecker(cfg config.Config, source string) (*cache.Cache, *sievecheck.Checker, error) {
	maxSize, err := cfg.Sieve.GetMaxScriptSize()
	if err != nil {
		return nil, nil, err
	}

	var resultCache *cache.Cache
	if cfg.Cache.Enabled {
		ttl, err := cfg.Cache.GetTTL()
		if err != nil {
			return nil, nil, err
		}
		resultCache, err = cache.New(cfg.Cache.MaxEntries, ttl, cfg.Cache.Path)
		if err != nil {
			return nil, nil, err
		}
	}

	var extensions []string
	if len(cfg.Sieve.SupportedExtensions) > 0 {
		extensions = cfg.Sieve.SupportedExtensions
	}
	checker, err := sievecheck.New(sievecheck.Options{
		SupportedExtensions: extensions,
		MaxNestingDepth:     cfg.Sieve.MaxNestingDepth,
		MaxScriptSize:       maxSize,
		StrictRequire:       cfg.Sieve.StrictRequire,
		CrossCheck:          cfg.Sieve.CrossCheck,
		RejectReason:        cfg.Sieve.RejectReason,
		Cache:               resultCache,
		Source:              source,
	})
	if err != nil {
		if resultCache != nil {
			resultCache.Close()
		}
		return nil, nil, err
	}
	return resultCache, checker, nil
}

func serveAPI(cfg config.Config, checker *sievecheck.Checker, resultCache *cache.Cache, errorHandler *errors.ErrorHandler) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signalChan)
	go func() {
		select {
		case sig := <-signalChan:
			logger.Info("Received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.Info("sievelint starting", "version", version, "commit", commit, "built", date)

	if resultCache != nil {
		ttl, _ := cfg.Cache.GetTTL()
		resultCache.StartCleanupLoop(ctx, ttl)
	}

	errChan := make(chan error, 2)
	if cfg.Metrics.Enabled {
		go metrics.StartServer(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, errChan)
	}

	maxSize, _ := cfg.Sieve.GetMaxScriptSize()
	go httpapi.Start(ctx, checker, httpapi.ServerOptions{
		Addr:          cfg.HTTPAPI.Addr,
		APIKey:        cfg.HTTPAPI.APIKey,
		AllowedHosts:  cfg.HTTPAPI.AllowedHosts,
		MaxScriptSize: maxSize,
		TLS:           cfg.HTTPAPI.TLS,
		TLSCertFile:   cfg.HTTPAPI.TLSCertFile,
		TLSKeyFile:    cfg.HTTPAPI.TLSKeyFile,
	}, errChan)

	select {
	case <-ctx.Done():
		// Give the servers a moment to finish their shutdown.
		time.Sleep(500 * time.Millisecond)
		return errors.ExitOK
	case err := <-errChan:
		errorHandler.FatalError("server operation", err)
		return errorHandler.WaitForExit()
	}
}

// checkFiles checks every named file, or standard input for "-" or no
// names. It returns ExitDiagnostics if any script is invalid and
// ExitUsage if any file could not be checked at all.
func checkFiles(names []string, checker *sievecheck.Checker, asJSON bool, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(names) == 0 {
		names = []string{"-"}
	}

	code := errors.ExitOK
	reports := []*sievecheck.Report{}
	for _, name := range names {
		script, err := readScript(name, stdin)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			code = errors.ExitUsage
			continue
		}

		report, err := checker.Check(context.Background(), name, script)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", name, err)
			code = errors.ExitUsage
			continue
		}
		if !report.Valid && code == errors.ExitOK {
			code = errors.ExitDiagnostics
		}

		if asJSON {
			reports = append(reports, report)
		} else {
			printReport(stdout, report)
		}
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			fmt.Fprintf(stderr, "failed to encode reports: %v\n", err)
			return errors.ExitUsage
		}
	}
	return code
}

func readScript(name string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if name == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printReport(w io.Writer, r *sievecheck.Report) {
	name := r.Name
	if name == "-" {
		name = "<stdin>"
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(w, "%s:%d:%d: %s\n", name, d.Line, d.Column, d.Message)
	}
	if len(r.ExtensionsNeeded) > 0 {
		fmt.Fprintf(w, "%s: uses %s\n", name, strings.Join(r.ExtensionsNeeded, ", "))
	}
	if len(r.Undeclared) > 0 && r.Valid {
		fmt.Fprintf(w, "%s: not declared with require: %s\n", name, strings.Join(r.Undeclared, ", "))
	}
	if cc := r.CrossCheck; cc != nil && !cc.Agrees {
		verdict := "accepts"
		if !cc.Valid {
			verdict = "rejects: " + cc.Error
		}
		fmt.Fprintf(w, "%s: %s %s\n", name, cc.Engine, verdict)
	}
	if r.Valid {
		fmt.Fprintf(w, "%s: ok\n", name)
	}
}
