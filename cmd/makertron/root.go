package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/makertron/internal/config"
	"github.com/chazu/makertron/internal/logging"
	"github.com/chazu/makertron/pkg/kernel"
	"github.com/chazu/makertron/pkg/kernel/manifold"
	"github.com/chazu/makertron/pkg/kernel/sdfx"
	"github.com/chazu/makertron/pkg/script"
	"github.com/chazu/makertron/pkg/tessellate"
)

var rootCmd = &cobra.Command{
	Use:           "makertron",
	Short:         "Makertron evaluates solid-modeling scripts into meshes",
	Long:          `Makertron compiles SCAD-style or Lisp scripts into an operation graph, resolves it on a geometry kernel and serializes the resulting solids.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML (or JSON) config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
}

// loadConfig reads --config and applies the flags shared by every command.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.Log.Format = v
	}
	return cfg, cfg.Validate()
}

func newKernel(backend string) (kernel.Kernel, error) {
	switch backend {
	case config.KernelManifold:
		return manifold.New()
	case config.KernelSdfx, "":
		return sdfx.New(), nil
	}
	return nil, fmt.Errorf("unknown kernel %q", backend)
}

// readScript reads a script file, "-" meaning stdin, and guesses its
// dialect from the extension unless one was given.
func readScript(path, dialect string) (source string, d script.Dialect, err error) {
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", "", fmt.Errorf("read script: %w", err)
	}
	if dialect == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".lisp", ".zy":
			dialect = string(script.DialectLisp)
		}
	}
	d, err = script.ParseDialect(dialect)
	return string(data), d, err
}

// writeOutputs writes STL results back to back, or the whole list as JSON
// for the triangles format.
func writeOutputs(path string, outputs []tessellate.Output) error {
	w := os.Stdout
	if path != "" && path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if len(outputs) > 0 && outputs[0].Format == tessellate.FormatTriangles {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outputs)
	}
	for _, out := range outputs {
		if _, err := w.WriteString(out.Data); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds the process logger on stderr and installs it as the
// slog default.
func newLogger(cfg *config.Config) *slog.Logger {
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	slog.SetDefault(logger)
	return logger
}
