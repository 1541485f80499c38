package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"atomicgo.dev/cursor"
	"golang.org/x/term"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// startInlineSpinner draws frames followed by text on one line of w until the
// returned stop function is called, which clears the line again. text is
// re-read on every tick so callers can update it.
func startInlineSpinner(w io.Writer, text func() string, frames []string, interval time.Duration) func() {
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	cursor.Hide()
	go func() {
		defer wg.Done()
		i := 0
		width := 0
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				fmt.Fprintf(w, "\r%s\r", strings.Repeat(" ", width))
				return
			case <-ticker.C:
				line := fmt.Sprintf("%s %s", frames[i%len(frames)], text())
				if len(line) > 200 {
					line = line[:200]
				}
				if len(line) > width {
					width = len(line)
				}
				fmt.Fprintf(w, "\r%-*s", width, line)
				i++
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			cursor.Show()
		})
	}
}
