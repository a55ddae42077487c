package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vango-dev/statetree/internal/config"
	"github.com/vango-dev/statetree/pkg/codec"
	"github.com/vango-dev/statetree/pkg/middleware"
	"github.com/vango-dev/statetree/pkg/observable"
	"github.com/vango-dev/statetree/pkg/schema"
)

// env carries what every command shares: configuration, logger and the
// instrumentation installed for the run.
type env struct {
	stdout, stderr io.Writer

	flags struct {
		config   string
		logLevel string
		metrics  bool
	}

	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *middleware.Metrics
	tracer   *sdktrace.TracerProvider

	restoreHooks func()
	ready        bool
}

func (e *env) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadOrDefault(e.flags.config)
	if err != nil {
		return err
	}
	if e.flags.logLevel != "" {
		cfg.Log.Level = e.flags.logLevel
	}
	if e.flags.metrics {
		cfg.Metrics.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg

	e.logger = newLogger(cfg.Log, e.stderr)
	observable.SetLogger(e.logger)

	hooks := []observable.Hooks{middleware.LogHooks(e.logger)}
	if cfg.Metrics.Enabled {
		e.registry = prometheus.NewRegistry()
		e.metrics = middleware.NewMetrics(
			middleware.WithRegistry(e.registry),
			middleware.WithNamespace(cfg.Metrics.Namespace),
		)
		hooks = append(hooks, e.metrics.Hooks())
	}
	e.restoreHooks = observable.SetHooks(middleware.Chain(hooks...))

	if cfg.Tracing.Enabled {
		e.tracer = sdktrace.NewTracerProvider(sdktrace.WithSyncer(&logExporter{logger: e.logger}))
	}
	e.ready = true

	if cfg.Path() != "" {
		e.logger.Debug("configuration loaded", "path", cfg.Path())
	}
	return nil
}

// teardown undoes setup and prints metrics when enabled. It is safe to call
// when setup failed or never ran.
func (e *env) teardown(ctx context.Context) error {
	if !e.ready {
		return nil
	}
	e.ready = false

	e.restoreHooks()
	observable.SetLogger(nil)

	var err error
	if e.tracer != nil {
		err = e.tracer.Shutdown(ctx)
	}
	if e.registry != nil {
		if derr := dumpMetrics(e.stderr, e.registry); err == nil {
			err = derr
		}
	}
	return err
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func dumpMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// instrument registers the configured write middleware on root.
func (e *env) instrument(ctx context.Context, root *observable.Node) {
	if e.metrics != nil {
		root.Use(e.metrics.Middleware())
	}
	if e.tracer != nil {
		root.Use(middleware.OpenTelemetry(
			middleware.WithTracerProvider(e.tracer),
			middleware.WithTracerName(e.cfg.Tracing.TracerName),
			middleware.WithParentContext(func() context.Context { return ctx }),
		))
	}
}

// format resolves a --format flag value, falling back to the configured one.
func (e *env) format(flag string) (codec.Format, error) {
	if flag == "" {
		flag = e.cfg.Format
	}
	return codec.ParseFormat(flag)
}

func (e *env) loadSchema(path string) (*schema.Descriptor, error) {
	if path == "" {
		path = e.cfg.SchemaPath()
	}
	if path == "" {
		return nil, fmt.Errorf("no schema given: pass --schema or set schema in %s", config.ConfigFileName)
	}
	desc, err := schema.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return desc, nil
}

// readDocument reads and decodes a snapshot file, decompressing it first if
// it is a zstd frame.
func readDocument(path string, f codec.Format) (any, error) {
	data, err := readPayload(path)
	if err != nil {
		return nil, err
	}
	v, err := codec.DecodeSnapshot(f, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

func readPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if codec.IsCompressed(data) {
		if data, err = codec.Decompress(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return data, nil
}

// loadTree builds a tree from a schema file and a state file.
func (e *env) loadTree(schemaPath, statePath string, f codec.Format) (*observable.Node, error) {
	desc, err := e.loadSchema(schemaPath)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(statePath, f)
	if err != nil {
		return nil, err
	}
	root, err := observable.New(desc, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", statePath, err)
	}
	e.logger.Debug("tree loaded", "state", statePath, "keys", len(root.Keys()))
	return root, nil
}

type output struct {
	path     string
	compress bool
}

// write encodes payload to the output file, or to stdout when no file is
// set. Indented JSON is only produced for uncompressed output.
func (e *env) write(out output, f codec.Format, payload []byte) error {
	if f == codec.FormatJSON && e.cfg.Snapshot.Indent && !out.compress {
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload, "", "  "); err == nil {
			payload = append(buf.Bytes(), '\n')
		}
	}
	if out.compress {
		payload = codec.Compress(payload)
	}
	if out.path == "" {
		_, err := e.stdout.Write(payload)
		return err
	}
	return os.WriteFile(out.path, payload, 0o644)
}
