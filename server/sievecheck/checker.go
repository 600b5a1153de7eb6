package sievecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/migadu/sievelint/cache"
	"github.com/migadu/sievelint/consts"
	"github.com/migadu/sievelint/logger"
	"github.com/migadu/sievelint/pkg/metrics"
	"github.com/migadu/sievelint/sieve"
)

// Options configures a Checker.
type Options struct {
	// SupportedExtensions is what require may name. Nil means the
	// parser's defaults.
	SupportedExtensions []string
	MaxNestingDepth     int
	// MaxScriptSize in bytes. Zero means no limit.
	MaxScriptSize int64
	// StrictRequire turns extensions used without require into
	// diagnostics. Otherwise they are only listed in Report.Undeclared.
	StrictRequire bool
	CrossCheck    bool
	RejectReason  bool
	// Cache is optional.
	Cache *cache.Cache
	// Source labels the metrics, e.g. "cli" or "http".
	Source string
}

// Report is the outcome of checking one script.
type Report struct {
	Name             string             `json:"name,omitempty"`
	Hash             string             `json:"hash"`
	Valid            bool               `json:"valid"`
	Diagnostics      []sieve.Diagnostic `json:"diagnostics"`
	ExtensionsNeeded []string           `json:"extensions_needed"`
	Declared         []string           `json:"declared"`
	Undeclared       []string           `json:"undeclared"`
	CrossCheck       *CrossCheckResult  `json:"cross_check,omitempty"`
	Cached           bool               `json:"cached"`
	Duration         time.Duration      `json:"duration_ns"`
}

// Checker is safe for concurrent use.
type Checker struct {
	opts        Options
	parse       sieve.Options
	fingerprint string
	load        loadFunc
}

// New validates opts and returns a Checker.
func New(opts Options) (*Checker, error) {
	if opts.SupportedExtensions != nil {
		if err := sieve.ValidateExtensions(opts.SupportedExtensions); err != nil {
			return nil, err
		}
	}
	if opts.MaxScriptSize < 0 {
		return nil, fmt.Errorf("max script size must not be negative: %d", opts.MaxScriptSize)
	}
	if opts.Source == "" {
		opts.Source = "cli"
	}

	parse := sieve.DefaultOptions()
	if opts.SupportedExtensions != nil {
		parse.SupportedExtensions = append([]string(nil), opts.SupportedExtensions...)
	}
	if opts.MaxNestingDepth > 0 {
		parse.MaxNestingDepth = opts.MaxNestingDepth
	}
	parse.RejectReason = opts.RejectReason

	c := &Checker{
		opts:  opts,
		parse: parse,
		load:  goSieveLoad,
	}
	c.fingerprint = strings.Join([]string{
		strings.Join(parse.SupportedExtensions, ","),
		strconv.Itoa(parse.MaxNestingDepth),
		strconv.FormatBool(opts.StrictRequire),
		strconv.FormatBool(opts.CrossCheck),
		strconv.FormatBool(opts.RejectReason),
	}, ";")
	return c, nil
}

// Extensions returns the extensions scripts may require.
func (c *Checker) Extensions() []string {
	return append([]string(nil), c.parse.SupportedExtensions...)
}

// Check parses and validates script. Bad scripts are not errors: they
// produce a Report with Valid false. Errors are returned only for scripts
// that are refused outright, consts.ErrEmptyScript and
// consts.ErrScriptTooLarge.
func (c *Checker) Check(ctx context.Context, name, script string) (*Report, error) {
	start := time.Now()
	log := logger.With("name", name)
	if id, ok := ctx.Value(consts.RequestIDKey).(string); ok {
		log = log.With("request_id", id)
	}

	if strings.TrimSpace(script) == "" {
		metrics.RejectedScriptsTotal.WithLabelValues("empty").Inc()
		return nil, consts.ErrEmptyScript
	}
	if c.opts.MaxScriptSize > 0 && int64(len(script)) > c.opts.MaxScriptSize {
		metrics.RejectedScriptsTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d bytes exceeds the limit of %d", consts.ErrScriptTooLarge, len(script), c.opts.MaxScriptSize)
	}

	hash := cache.Key(script)
	key := cache.Key(script, c.fingerprint)

	if c.opts.Cache != nil {
		if data, ok := c.opts.Cache.Get(key); ok {
			var r Report
			err := json.Unmarshal(data, &r)
			if err == nil {
				r.Name = name
				r.Cached = true
				r.Duration = time.Since(start)
				metrics.ObserveCheck(c.opts.Source, r.Valid, true, len(script), r.Duration)
				log.DebugContext(ctx, "Script check served from cache", "script_hash", hash)
				return &r, nil
			}
			log.WarnContext(ctx, "Discarding unreadable cached report", "error", err)
		}
	}

	r := c.run(script)
	r.Name = name
	r.Hash = hash
	r.Duration = time.Since(start)

	metrics.ObserveCheck(c.opts.Source, r.Valid, false, len(script), r.Duration)
	for _, d := range r.Diagnostics {
		metrics.DiagnosticsTotal.WithLabelValues(d.Production).Inc()
	}
	for _, e := range r.ExtensionsNeeded {
		metrics.ExtensionsUsedTotal.WithLabelValues(e).Inc()
	}
	if r.CrossCheck != nil && !r.CrossCheck.Agrees {
		metrics.CrossCheckDisagreementsTotal.Inc()
		log.WarnContext(ctx, "go-sieve disagrees with the checker",
			"script_hash", hash, "valid", r.Valid, "go_sieve_error", r.CrossCheck.Error)
	}

	log.DebugContext(ctx, "Script checked",
		"script_hash", hash, "valid", r.Valid, "errors", len(r.Diagnostics), "duration", r.Duration)

	if c.opts.Cache != nil {
		stored := *r
		stored.Name = ""
		if data, err := json.Marshal(&stored); err != nil {
			log.ErrorContext(ctx, "Failed to encode report for the cache", "error", err)
		} else if err := c.opts.Cache.Put(key, data); err != nil {
			log.WarnContext(ctx, "Failed to cache report", "error", err)
		}
	}
	return r, nil
}

func (c *Checker) run(script string) *Report {
	s := sieve.Parse(script, c.parse)

	diagnostics := s.Diagnostics()
	if !c.opts.StrictRequire {
		kept := diagnostics[:0]
		for _, d := range diagnostics {
			if d.Production != sieve.ScriptProduction {
				kept = append(kept, d)
			}
		}
		diagnostics = kept
	}

	r := &Report{
		Valid:            len(diagnostics) == 0,
		Diagnostics:      diagnostics,
		ExtensionsNeeded: s.ExtensionsNeeded(),
		Declared:         s.Declared(),
		Undeclared:       s.Undeclared(),
	}

	if c.opts.CrossCheck {
		used := append(append([]string{}, s.Declared()...), s.ExtensionsNeeded()...)
		if usesCommand(s.Commands(), "reject") {
			used = append(used, "reject")
		}
		r.CrossCheck = crossCheck(c.load, script, r.Valid, used, c.parse.SupportedExtensions)
	}
	return r
}

// usesCommand reports whether identifier occurs among cmds or in their
// blocks.
func usesCommand(cmds []*sieve.Command, identifier string) bool {
	for _, c := range cmds {
		if c.Identifier() == identifier {
			return true
		}
		if c.Block() != nil && usesCommand(c.Block().Commands(), identifier) {
			return true
		}
	}
	return false
}
