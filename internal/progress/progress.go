// Package progress prints a carriage-returned, non-machine-readable status
// line to stdout, plus a throughput figure reported alongside the update
// rate. Terminal width comes from golang.org/x/term on every platform, so the
// line is truncated instead of wrapping; on Windows, containerd/console sets
// up the console first.
package progress

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/containerd/console"
	"golang.org/x/term"
)

// Bar tracks one long-running operation (a training run, an inference pass)
// and renders a single carriage-returned status line per Report call.
type Bar struct {
	w     io.Writer
	label string
	start time.Time
}

// NewBar returns a Bar that writes to w, labeled for display (e.g.
// "iteration 3/100").
func NewBar(w io.Writer, label string) *Bar {
	return &Bar{w: w, label: label, start: time.Now()}
}

// Report prints one status line: the label, the update-rate/density
// figures the caller supplies, and a words/sec throughput figure computed
// from wordsProcessed since the bar was created.
func (b *Bar) Report(wordsProcessed int64, updateRate, density float64) {
	elapsed := time.Since(b.start).Seconds()
	var wps float64
	if elapsed > 0 {
		wps = float64(wordsProcessed) / elapsed / 1000
	}
	line := fmt.Sprintf("\r%s  update %.2f%%  density %.4f  %.2fk word/sec", b.label, updateRate*100, density, wps)
	fmt.Fprint(b.w, truncate(line, width()))
}

// Done terminates the progress line with a trailing newline so subsequent
// output (the train summary table, an error) starts on its own line.
func (b *Bar) Done() {
	fmt.Fprintln(b.w)
}

// width returns the current terminal width, or 80 if it cannot be
// determined (piped output, non-terminal stdout). On Windows, a console
// session is put into ANSI/VT mode first (containerd/console) so the
// carriage-returned line behaves the same as on a POSIX terminal.
func width() int {
	if runtime.GOOS == "windows" && term.IsTerminal(int(os.Stdout.Fd())) {
		if _, err := console.ConsoleFromFile(os.Stdout); err != nil {
			slog.Debug("console: failed to enable VT mode", "error", err)
		}
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// truncate cuts s to at most n bytes so a carriage-returned line never
// wraps onto a second terminal row and leaves stray characters behind.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
