// Package config loads and validates the TOML file describing the primitive
// catalog, the forbidding rules and the grammar build jobs.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	coreerrors "gramspace/internal/core/errors"
	"gramspace/internal/engine/types"
)

type Config struct {
	Version       int           `toml:"version"`
	Primitives    []Primitive   `toml:"primitive"`
	Forbid        []ForbidRule  `toml:"forbid"`
	Jobs          []Job         `toml:"job"`
	Watch         Watch         `toml:"watch"`
	History       History       `toml:"history"`
	Observability Observability `toml:"observability"`
}

// Primitive is one catalog entry: a name and a monomorphic type expression
// such as "int -> int -> int".
type Primitive struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
}

// ForbidRule forbids successor primitives directly below a producer; both
// sides are glob patterns over primitive names.
type ForbidRule struct {
	Producer   string   `toml:"producer"`
	Successors []string `toml:"successors"`
}

// Job is one grammar to build.
type Job struct {
	Name             string   `toml:"name"`
	TypeRequest      string   `toml:"type_request"`
	MaxDepth         int      `toml:"max_depth"`
	NGram            int      `toml:"n_gram"`
	MinVariableDepth int      `toml:"min_variable_depth"`
	Recursive        bool     `toml:"recursive"`
	ConstantTypes    []string `toml:"constant_types"`
}

type Watch struct {
	Debounce          time.Duration `toml:"debounce"`
	Paths             []string      `toml:"paths"`
	Exclude           []string      `toml:"exclude"`
	RebuildsPerSecond float64       `toml:"rebuilds_per_second"`
	Burst             int           `toml:"burst"`
}

type History struct {
	Enabled     bool          `toml:"enabled"`
	Path        string        `toml:"path"`
	Project     string        `toml:"project"`
	BusyTimeout time.Duration `toml:"busy_timeout"`
}

type Observability struct {
	MetricsAddr   string `toml:"metrics_addr"`
	TraceExporter string `toml:"trace_exporter"`
	OTLPEndpoint  string `toml:"otlp_endpoint"`
	OTLPInsecure  bool   `toml:"otlp_insecure"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes and validates a config document.
func Parse(data string) (*Config, error) {
	var cfg Config
	if _, err := toml.Decode(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateVersion(&cfg); err != nil {
		return nil, err
	}
	if err := validateCatalog(&cfg); err != nil {
		return nil, err
	}
	if err := validateForbid(&cfg); err != nil {
		return nil, err
	}
	if err := validateJobs(&cfg); err != nil {
		return nil, err
	}
	if err := validateWatch(&cfg); err != nil {
		return nil, err
	}
	if err := validateHistory(&cfg); err != nil {
		return nil, err
	}
	if err := validateObservability(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}

	for i := range cfg.Jobs {
		job := &cfg.Jobs[i]
		if job.MaxDepth == 0 {
			job.MaxDepth = 4
		}
		if job.NGram == 0 {
			job.NGram = 1
		}
		if job.MinVariableDepth == 0 {
			job.MinVariableDepth = 1
		}
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if len(cfg.Watch.Paths) == 0 {
		cfg.Watch.Paths = []string{"."}
	}
	if cfg.Watch.RebuildsPerSecond <= 0 {
		cfg.Watch.RebuildsPerSecond = 1
	}
	if cfg.Watch.Burst <= 0 {
		cfg.Watch.Burst = 2
	}

	if strings.TrimSpace(cfg.History.Path) == "" {
		cfg.History.Path = "history.db"
	}
	if strings.TrimSpace(cfg.History.Project) == "" {
		cfg.History.Project = "default"
	}
	if cfg.History.BusyTimeout <= 0 {
		cfg.History.BusyTimeout = 5 * time.Second
	}

	if strings.TrimSpace(cfg.Observability.TraceExporter) == "" {
		cfg.Observability.TraceExporter = "none"
	}
}

func validateVersion(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}
	return nil
}

func validateCatalog(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Primitives))
	for i, p := range cfg.Primitives {
		ref := fmt.Sprintf("primitive[%d]", i)
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if seen[name] {
			return fmt.Errorf("duplicate primitive name %q", name)
		}
		seen[name] = true

		if _, err := types.Parse(p.Type); err != nil {
			return coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeBadType, fmt.Sprintf("%s.type", ref)),
				coreerrors.CtxPrimitive, name)
		}
	}
	return nil
}

func validateForbid(cfg *Config) error {
	for i, r := range cfg.Forbid {
		ref := fmt.Sprintf("forbid[%d]", i)
		if strings.TrimSpace(r.Producer) == "" {
			return fmt.Errorf("%s.producer must not be empty", ref)
		}
		if _, err := glob.Compile(r.Producer); err != nil {
			return fmt.Errorf("%s.producer pattern %q: %w", ref, r.Producer, err)
		}
		if len(r.Successors) == 0 {
			return fmt.Errorf("%s.successors must not be empty", ref)
		}
		for _, s := range r.Successors {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("%s.successors must not include empty patterns", ref)
			}
			if _, err := glob.Compile(s); err != nil {
				return fmt.Errorf("%s.successors pattern %q: %w", ref, s, err)
			}
		}
	}
	return nil
}

func validateJobs(cfg *Config) error {
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("at least one [[job]] is required")
	}

	seen := make(map[string]bool, len(cfg.Jobs))
	for i, job := range cfg.Jobs {
		ref := fmt.Sprintf("job[%d]", i)
		name := strings.TrimSpace(job.Name)
		if name == "" {
			return fmt.Errorf("%s.name must not be empty", ref)
		}
		if seen[name] {
			return fmt.Errorf("duplicate job name %q", name)
		}
		seen[name] = true

		if _, err := types.Parse(job.TypeRequest); err != nil {
			return coreerrors.AddContext(
				coreerrors.Wrap(err, coreerrors.CodeBadType, fmt.Sprintf("%s.type_request", ref)),
				coreerrors.CtxJob, name)
		}
		if job.MaxDepth < 0 {
			return fmt.Errorf("%s.max_depth must be >= 0, got %d", ref, job.MaxDepth)
		}
		if job.NGram < 1 {
			return fmt.Errorf("%s.n_gram must be >= 1, got %d", ref, job.NGram)
		}
		if job.MinVariableDepth < 0 {
			return fmt.Errorf("%s.min_variable_depth must be >= 0, got %d", ref, job.MinVariableDepth)
		}
		for _, ct := range job.ConstantTypes {
			if _, err := types.Parse(ct); err != nil {
				return coreerrors.AddContext(
					coreerrors.Wrap(err, coreerrors.CodeBadType, fmt.Sprintf("%s.constant_types", ref)),
					coreerrors.CtxJob, name)
			}
		}
	}
	return nil
}

func validateWatch(cfg *Config) error {
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	for _, p := range cfg.Watch.Paths {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("watch.paths must not include empty values")
		}
	}
	for _, pattern := range cfg.Watch.Exclude {
		if _, err := glob.Compile(pattern); err != nil {
			return fmt.Errorf("watch.exclude pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func validateHistory(cfg *Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	if strings.TrimSpace(cfg.History.Path) == "" {
		return fmt.Errorf("history.path must not be empty when history.enabled=true")
	}
	return nil
}

func validateObservability(cfg *Config) error {
	exporter := strings.ToLower(strings.TrimSpace(cfg.Observability.TraceExporter))
	switch exporter {
	case "none", "otlp":
	default:
		return fmt.Errorf("observability.trace_exporter must be one of: none, otlp")
	}
	if exporter == "otlp" && strings.TrimSpace(cfg.Observability.OTLPEndpoint) == "" {
		return fmt.Errorf("observability.otlp_endpoint must not be empty when trace_exporter=otlp")
	}
	return nil
}
