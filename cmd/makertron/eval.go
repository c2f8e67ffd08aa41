package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chazu/makertron/internal/ctxlog"
	"github.com/chazu/makertron/pkg/session"
	"github.com/chazu/makertron/pkg/tessellate"
)

var evalCmd = &cobra.Command{
	Use:   "eval <file>",
	Short: "Evaluate a script locally",
	Long:  `Evaluates a script file ("-" for stdin) in-process. Log lines go to stderr, serialized solids to stdout or --out.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("kernel"); v != "" {
			cfg.Eval.Kernel = v
		}
		logger := newLogger(cfg)

		req, out, err := requestFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		k, err := newKernel(cfg.Eval.Kernel)
		if err != nil {
			return err
		}

		s := session.New(k,
			session.WithMaxIterations(cfg.Eval.MaxIterations),
			session.WithDefaults(cfg.Eval.DefaultQuality, tessellate.Format(cfg.Eval.DefaultFormat)),
		)
		ctx, cancel := context.WithTimeout(ctxlog.WithLogger(cmd.Context(), logger), cfg.Eval.Timeout)
		defer cancel()

		ev := s.Run(ctx, req, func(ev session.Event) {
			if ev.Type == session.EventLog {
				printLog(ev.Log)
			}
		})
		if ev.Err != nil {
			return ev.Err
		}
		return writeOutputs(out, ev.Results)
	},
}

// requestFromFlags builds a request from the script at path and the
// evaluation flags, returning the --out path alongside.
func requestFromFlags(cmd *cobra.Command, path string) (session.Request, string, error) {
	dialect, _ := cmd.Flags().GetString("dialect")
	source, d, err := readScript(path, dialect)
	if err != nil {
		return session.Request{}, "", err
	}
	quality, _ := cmd.Flags().GetFloat64("quality")
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	return session.Request{Script: source, Dialect: string(d), Quality: quality, Format: format}, out, nil
}

func printLog(args []any) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	fmt.Fprintln(os.Stderr, strings.Join(parts, " "))
}

func addEvalFlags(cmd *cobra.Command) {
	cmd.Flags().String("dialect", "", "Script dialect: scad or lisp (default from extension, else scad)")
	cmd.Flags().Float64("quality", 0, "Mesh quality, smaller is finer (default from config)")
	cmd.Flags().StringP("format", "f", "", "Output format: stl or triangles (default from config)")
	cmd.Flags().StringP("out", "o", "", "Write output to this file instead of stdout")
}

func init() {
	rootCmd.AddCommand(evalCmd)
	addEvalFlags(evalCmd)
	evalCmd.Flags().String("kernel", "", "Geometry kernel: sdfx or manifold")
}
