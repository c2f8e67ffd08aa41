package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/makertron/internal/client"
	"github.com/chazu/makertron/internal/ctxlog"
)

var submitCmd = &cobra.Command{
	Use:   "submit <file>",
	Short: "Evaluate a script on a running server",
	Long:  `Sends a script file ("-" for stdin) to a makertron server over socket.io and writes the returned solids.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		req, out, err := requestFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		url, _ := cmd.Flags().GetString("url")
		timeout, _ := cmd.Flags().GetDuration("timeout")
		insecure, _ := cmd.Flags().GetBool("insecure")

		ctx, cancel := context.WithTimeout(ctxlog.WithLogger(cmd.Context(), logger), timeout)
		defer cancel()

		res, err := client.Submit(ctx, url, req, client.Options{
			InsecureSkipVerify: insecure,
			OnLog:              printLog,
		})
		if err != nil {
			return err
		}
		if res.Failure != nil {
			return res.Failure
		}
		return writeOutputs(out, res.Results)
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	addEvalFlags(submitCmd)
	submitCmd.Flags().String("url", "http://localhost:3000", "Server URL")
	submitCmd.Flags().Duration("timeout", time.Minute, "Give up after this long")
	submitCmd.Flags().Bool("insecure", false, "Skip TLS certificate verification")
}
