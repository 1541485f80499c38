// Package progress renders job lifecycle events to the terminal.
package progress

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"sqlaunch/cli/internal/job"

	"github.com/pterm/pterm"
)

// Renderer prints one line per finished or failed job. With verbose set it
// also prints submissions and starts.
type Renderer struct {
	w       io.Writer
	verbose bool

	mu     sync.Mutex
	counts map[job.Status]int
}

// NewRenderer creates a renderer writing to w.
func NewRenderer(w io.Writer, verbose bool) *Renderer {
	return &Renderer{w: w, verbose: verbose, counts: map[job.Status]int{}}
}

// Consume renders events until the channel is closed.
func (r *Renderer) Consume(events <-chan job.Event) {
	for ev := range events {
		r.Render(ev)
	}
}

// Render processes a single event.
func (r *Renderer) Render(ev job.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := ev.Job
	switch ev.Type {
	case job.EventSubmitted:
		if r.verbose {
			fmt.Fprintln(r.w, pterm.Gray("• queued  ")+label(info))
		}
	case job.EventRunning:
		if r.verbose {
			fmt.Fprintln(r.w, pterm.Gray("• running ")+label(info))
		}
	case job.EventFinished:
		r.counts[job.StatusFinished]++
		fmt.Fprintln(r.w, pterm.Green("✓ ")+label(info)+pterm.Gray(" "+outcome(info)))
	case job.EventFailed:
		r.counts[job.StatusFailed]++
		fmt.Fprintln(r.w, pterm.Red("✗ ")+label(info)+" "+pterm.Red(info.Error))
	}
}

// Counts returns how many finished and failed events were rendered.
func (r *Renderer) Counts() (finished, failed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[job.StatusFinished], r.counts[job.StatusFailed]
}

func label(info job.Info) string {
	return fmt.Sprintf("%s %s", pterm.Bold.Sprint(string(info.Kind)), Abbreviate(info.Statement, 60))
}

func outcome(info job.Info) string {
	d := info.Duration(time.Now()).Round(time.Millisecond)
	switch {
	case info.RowCount > 0:
		return fmt.Sprintf("(%d rows, %s)", info.RowCount, d)
	case info.RowsAffected > 0:
		return fmt.Sprintf("(%d affected, %s)", info.RowsAffected, d)
	}
	return "(" + d.String() + ")"
}

// Abbreviate collapses whitespace and cuts s to max runes.
func Abbreviate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max-1]) + "…"
}

// Table renders job snapshots as a table.
func Table(infos []job.Info) (string, error) {
	data := pterm.TableData{{"ID", "Kind", "Status", "Rows", "Duration", "Statement"}}
	now := time.Now()
	for _, info := range infos {
		rows := ""
		switch {
		case info.RowCount > 0:
			rows = strconv.Itoa(info.RowCount)
		case info.RowsAffected > 0:
			rows = strconv.FormatInt(info.RowsAffected, 10)
		}
		id := info.ID
		if len(id) > 8 {
			id = id[:8]
		}
		data = append(data, []string{
			id,
			string(info.Kind),
			string(info.Status),
			rows,
			info.Duration(now).Round(time.Millisecond).String(),
			Abbreviate(info.Statement, 48),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}
