// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package cmd provides the command-line interface for sqlaunch. The root
// command starts an execution environment, binds a streaming bridge to it and
// submits the SQL statements given as arguments, announcing each one first.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sqlaunch/cli/internal/config"
	"sqlaunch/cli/internal/dsn"
	"sqlaunch/cli/internal/errors"
	"sqlaunch/cli/internal/gateway"
	"sqlaunch/cli/internal/launcher"
	"sqlaunch/cli/internal/logging"
	"sqlaunch/cli/internal/progress"
	"sqlaunch/cli/internal/runtime"
	"sqlaunch/cli/internal/script"
	"sqlaunch/cli/internal/tableenv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	showVersion bool
	flags       launchFlags
)

// rootCmd submits its arguments as SQL statements.
var rootCmd = &cobra.Command{
	Use:   "sqlaunch [flags] [SQL ...]",
	Short: "Submit SQL statements to an embedded execution environment",
	Long: `sqlaunch starts an execution environment with a debug console, binds a
streaming SQL bridge to it and submits every argument as one statement, in
order. Blank arguments are skipped. The first failure stops the run.

Statements may also come from script files (--file), a gRPC gateway
(--gateway-addr) or the interactive shell (sqlaunch shell).`,
	Example: `  sqlaunch "CREATE TABLE t (a INT)" "INSERT INTO t VALUES (1)"
  sqlaunch --await each -f schema.sql -f data.sql
  sqlaunch --dsn postgres://app@localhost/app --mode batch "VACUUM"`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			printVersion(cmd.OutOrStdout())
			return nil
		}
		return runLaunch(cmd, args)
	},
}

// Execute runs the CLI application and exits 1 on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, logging.Mask(err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Show version information")
	flags.register(rootCmd.Flags())
}

// session is everything a run needs once configuration is resolved.
type session struct {
	cfg    config.Config
	log    *pterm.Logger
	env    *runtime.Environment
	bridge *tableenv.TableEnvironment
	await  launcher.AwaitPolicy
}

// openSession resolves configuration and starts the environment. The
// caller must close sess.env.
func openSession(ctx context.Context, cmd *cobra.Command, f *launchFlags) (*session, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.config)
	if err != nil {
		return nil, err
	}
	if err := f.apply(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}
	if f.verbose {
		os.Setenv(envVerbose, "1")
	}
	log := logging.New(os.Stderr, cfg.LogLevel, false)

	mode, err := tableenv.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	await, err := launcher.ParseAwaitPolicy(cfg.Await)
	if err != nil {
		return nil, err
	}

	rawDSN, source := resolveDSN(f.dsn, cfg.Engine.DSN, keychainLookup(f.profile))
	engine, normalized, err := resolveEngine(cfg.Engine.Name, cmd.Flags().Changed("engine"), rawDSN)
	if err != nil {
		if pe, ok := err.(*dsn.ParseError); ok {
			log.Error("invalid connection string", log.Args("source", string(source), "reason", pe.Reason))
		}
		return nil, err
	}
	if source != sourceNone {
		log.Debug("using DSN", log.Args("source", string(source), "dsn", logging.Mask(normalized)))
	}

	store, err := checkpointStore(ctx, cfg.Checkpoint)
	if err != nil {
		return nil, err
	}
	env, err := runtime.NewEnvironment(ctx, runtimeOptions(cfg, engine, normalized, store, log))
	if err != nil {
		if errors.KindOf(err) == errors.EngineOpenFailed {
			pterm.Fprintln(os.Stderr, logging.DescribeConnectError(engine, err))
		}
		return nil, err
	}
	te, err := tableenv.New(env, tableenv.Settings{Mode: mode})
	if err != nil {
		_ = env.Close(ctx)
		return nil, err
	}
	log.Debug("environment ready", log.Args("engine", engine, "mode", string(mode), "await", string(await)))
	return &session{cfg: cfg, log: log, env: env, bridge: te, await: await}, nil
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands := launcher.Commands(args)
	if len(flags.files) > 0 {
		fromFiles, err := script.ReadFiles(flags.files, cmd.InOrStdin())
		if err != nil {
			return err
		}
		commands = append(commands, fromFiles...)
	}

	sess, err := openSession(ctx, cmd, &flags)
	if err != nil {
		return err
	}

	var g errgroup.Group
	renderer := progress.NewRenderer(os.Stderr, flags.verbose)
	g.Go(func() error {
		renderer.Consume(sess.env.Events())
		return nil
	})

	out := cmd.OutOrStdout()
	l := &launcher.Launcher{Out: out, Bridge: sess.bridge, Await: sess.await}
	runErr := l.Run(ctx, commands)

	if runErr == nil && sess.cfg.Gateway.Addr != "" {
		runErr = serveGateway(ctx, sess, out)
	}

	closeErr := closeSession(ctx, sess)
	_ = g.Wait()
	if _, failed := renderer.Counts(); failed > 0 {
		sess.log.Warn("statements failed", sess.log.Args("count", failed))
	}

	if flags.verbose {
		if table, err := progress.Table(sess.env.Jobs()); err == nil {
			pterm.Fprintln(os.Stderr, table)
		}
	}
	if runErr == nil {
		// jobs nobody awaited still decide the exit status
		runErr = sess.env.FirstError()
	}
	if runErr != nil {
		return runErr
	}
	return closeErr
}

// serveGateway accepts statements over gRPC until ctx is cancelled.
func serveGateway(ctx context.Context, sess *session, out io.Writer) error {
	srv := gateway.NewServer(sess.bridge, sess.env, out, sess.log)
	if err := srv.Listen(sess.cfg.Gateway.Addr); err != nil {
		return errors.Wrap(errors.GatewayFailed, "listen on "+sess.cfg.Gateway.Addr, err)
	}
	sess.log.Info("SQL gateway listening", sess.log.Args("addr", srv.Addr()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(nil); err != nil {
			return errors.Wrap(errors.GatewayFailed, "serve", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(stopCtx)
		return nil
	})
	return g.Wait()
}

// closeSession waits for jobs still running, showing a spinner on a
// terminal. Interrupting the wait aborts them.
func closeSession(ctx context.Context, sess *session) error {
	pending := func() int {
		n := 0
		for _, info := range sess.env.Jobs() {
			if !info.Status.Terminal() {
				n++
			}
		}
		return n
	}
	if pending() > 0 && isTerminal(os.Stderr) && isTerminal(os.Stdout) {
		stopSpinner := startInlineSpinner(os.Stderr, func() string {
			return fmt.Sprintf("waiting for %d running job(s)", pending())
		}, spinnerFrames, 100*time.Millisecond)
		defer stopSpinner()
	}
	return sess.env.Close(ctx)
}
