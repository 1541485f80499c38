// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"
	"time"

	"sqlaunch/cli/internal/gateway"
	"sqlaunch/cli/internal/launcher"
	"sqlaunch/cli/internal/logging"

	"github.com/spf13/cobra"
)

var (
	submitAddr    string
	submitTLS     bool
	submitWait    bool
	submitTimeout time.Duration
)

// submitCmd sends statements to a running sqlaunch gateway.
var submitCmd = &cobra.Command{
	Use:   "submit [SQL ...]",
	Short: "Submit statements to a running sqlaunch gateway",
	Long: `The submit command sends each argument to a sqlaunch process started with
--gateway-addr. Statements are announced and executed by that process; this
command prints the job each statement produced. The first failure stops it.`,
	Example: `  sqlaunch --gateway-addr localhost:7070 &
  sqlaunch submit --addr localhost:7070 --wait "INSERT INTO t VALUES (2)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		commands := launcher.Commands(args)
		if len(commands) == 0 {
			return nil
		}
		c, err := gateway.Dial(submitAddr, submitTLS)
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), submitTimeout)
		defer cancel()
		if err := c.Check(ctx); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), logging.FormatGatewayError(submitAddr, err))
			return err
		}

		out := cmd.OutOrStdout()
		for _, stmt := range commands {
			info, err := c.Submit(ctx, stmt)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), logging.FormatGatewayError(submitAddr, err))
				return err
			}
			if submitWait && !info.Status.Terminal() {
				if info, err = c.Wait(ctx, info.ID, 50*time.Millisecond); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "%s\t%s\t%s\n", info.ID, info.Kind, info.Status)
			if info.Error != "" {
				return fmt.Errorf("%s", info.Error)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringVar(&submitAddr, "addr", "localhost:"+gateway.DefaultPort, "Gateway address")
	submitCmd.Flags().BoolVar(&submitTLS, "tls", false, "Use TLS")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Wait for each job to finish")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", time.Minute, "Overall timeout")
}
