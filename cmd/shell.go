// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"sqlaunch/cli/internal/checkpoint"
	"sqlaunch/cli/internal/job"
	"sqlaunch/cli/internal/launcher"
	"sqlaunch/cli/internal/logging"
	"sqlaunch/cli/internal/progress"
	"sqlaunch/cli/internal/script"
	"sqlaunch/cli/internal/xdg"

	"github.com/peterh/liner"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var shellFlags launchFlags

const shellHelp = `Statements end with ';' and may span lines.
  .jobs         list jobs
  .checkpoint   take a checkpoint now
  .help         show this help
  .quit         leave the shell`

// shellCmd reads statements interactively and runs each through the launcher.
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive SQL shell over one execution environment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
		defer stop()

		sess, err := openSession(ctx, cmd, &shellFlags)
		if err != nil {
			return err
		}
		renderer := progress.NewRenderer(os.Stderr, shellFlags.verbose)
		rendered := make(chan struct{})
		go func() {
			defer close(rendered)
			renderer.Consume(sess.env.Events())
		}()

		line := liner.NewLiner()
		line.SetCtrlCAborts(true)
		line.SetMultiLineMode(true)
		historyPath := loadHistory(line)

		out := cmd.OutOrStdout()
		l := &launcher.Launcher{Out: out, Bridge: sess.bridge, Await: sess.await}
		if addr := sess.env.ConsoleAddr(); addr != "" {
			fmt.Fprintf(out, "debug console: http://%s\n", addr)
		}
		fmt.Fprintln(out, `Type ".help" for help.`)

		var buf strings.Builder
		for {
			prompt := "sqlaunch> "
			if buf.Len() > 0 {
				prompt = "      ... "
			}
			input, err := line.Prompt(prompt)
			if errors.Is(err, liner.ErrPromptAborted) {
				buf.Reset()
				continue
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					sess.log.Warn("read input", sess.log.Args("error", err.Error()))
				}
				break
			}
			trimmed := strings.TrimSpace(input)
			if buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
				line.AppendHistory(trimmed)
				if !shellMeta(ctx, out, trimmed, sess.env) {
					break
				}
				continue
			}
			buf.WriteString(input)
			buf.WriteString("\n")
			if !strings.HasSuffix(trimmed, ";") {
				continue
			}
			src := buf.String()
			buf.Reset()
			line.AppendHistory(strings.TrimSpace(src))
			// a failed statement is reported; the shell keeps going
			if err := l.Run(ctx, script.Split(src)); err != nil {
				pterm.Fprintln(os.Stderr, pterm.Red(logging.PresentError("error", err)))
			}
		}

		saveHistory(line, historyPath)
		line.Close()
		err = closeSession(ctx, sess)
		<-rendered
		return err
	},
}

// shellSource is the part of the environment dot commands use.
type shellSource interface {
	Jobs() []job.Info
	Checkpoint(ctx context.Context) (checkpoint.Snapshot, error)
}

// shellMeta runs a dot command and reports whether the shell should go on.
func shellMeta(ctx context.Context, w io.Writer, cmd string, src shellSource) bool {
	switch cmd {
	case ".quit", ".exit", ".q":
		return false
	case ".checkpoint":
		snap, err := src.Checkpoint(ctx)
		if err != nil {
			fmt.Fprintln(w, logging.PresentError("checkpoint", err))
			return true
		}
		fmt.Fprintf(w, "checkpoint %d: %d job(s)\n", snap.Sequence, len(snap.Jobs))
	case ".jobs":
		table, err := progress.Table(src.Jobs())
		if err != nil {
			fmt.Fprintln(w, err)
			return true
		}
		fmt.Fprintln(w, table)
	case ".help":
		fmt.Fprintln(w, shellHelp)
	default:
		fmt.Fprintf(w, "unknown command %s\n%s\n", cmd, shellHelp)
	}
	return true
}

func loadHistory(line *liner.State) string {
	dir, err := xdg.StateDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, "history")
	if f, err := os.Open(path); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return path
}

func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellFlags.register(shellCmd.Flags())
	_ = shellCmd.Flags().MarkHidden("file")
	_ = shellCmd.Flags().MarkHidden("gateway-addr")
}
