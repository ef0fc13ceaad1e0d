package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

// Display renders user-facing output. All writes go through the held writer
// so the REPL can swap in the raw-mode terminal, which keeps output readable
// while a prompt is active.
//
// Live mode state lives here because both the foreground command loop and
// the telemetry consumer goroutine touch it.
type Display struct {
	mu  sync.Mutex
	out io.Writer

	cyan   *color.Color
	red    *color.Color
	green  *color.Color
	yellow *color.Color
	faint  *color.Color
	title  *color.Color

	liveEnabled bool
	liveView    treadmill.Telemetry
}

// NewDisplay creates a display writing to out.
func NewDisplay(out io.Writer) *Display {
	return &Display{
		out:    out,
		cyan:   color.New(color.FgCyan),
		red:    color.New(color.FgRed),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		faint:  color.New(color.Faint),
		title:  color.New(color.FgCyan, color.Bold),
	}
}

// SetWriter redirects all subsequent output, returning the previous writer.
func (d *Display) SetWriter(out io.Writer) io.Writer {
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.out
	d.out = out
	return prev
}

// Banner prints the REPL greeting.
func (d *Display) Banner() {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, d.cyan.Sprint("FitCtrl - FTMS Equipment Control"))
	fmt.Fprintln(d.out, d.faint.Sprint("Type 'help' for commands, 'quit' to exit"))
}

// Println prints a plain line with no prefix.
func (d *Display) Println(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, msg)
}

// Header prints a section heading.
func (d *Display) Header(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, d.title.Sprint(msg))
}

// Highlight prints an accented line, used for farewell and similar notices.
func (d *Display) Highlight(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, d.cyan.Sprint(msg))
}

// Info prints an informational line with a cyan prefix.
func (d *Display) Info(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s %s\n", d.cyan.Sprint("Info:"), msg)
}

// Error prints an error line with a red prefix.
func (d *Display) Error(msg string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, "%s %s\n", d.red.Sprint("Error:"), msg)
}

// Result prints the outcome of a control point command.
func (d *Display) Result(cmd string, result ftms.ResultCode) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch result {
	case ftms.ResultSuccess:
		d.green.Fprintf(d.out, "✓ %s succeeded\n", cmd)
	case ftms.ResultNotSupported:
		d.yellow.Fprintf(d.out, "⚠ %s not supported by device\n", cmd)
	case ftms.ResultInvalidParameter:
		d.red.Fprintf(d.out, "✗ %s invalid parameter\n", cmd)
	case ftms.ResultFailed:
		d.red.Fprintf(d.out, "✗ %s failed\n", cmd)
	case ftms.ResultNotPermitted:
		d.red.Fprintf(d.out, "✗ %s not permitted\n", cmd)
	default:
		d.yellow.Fprintf(d.out, "? %s result: %s\n", cmd, result)
	}
}

// StatusTable renders the current telemetry as a two-column table.
func (d *Display) StatusTable(t treadmill.Telemetry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE")
	fmt.Fprintf(w, "Status\t%s\n", t.Status)
	fmt.Fprintf(w, "Speed\t%s\n", FormatSpeed(t.Speed))
	fmt.Fprintf(w, "Distance\t%s\n", FormatDistance(t.Distance))
	fmt.Fprintf(w, "Time\t%s\n", FormatTime(t.Time))
	fmt.Fprintf(w, "Steps\t%s\n", formatThousands(t.Steps))
	fmt.Fprintf(w, "Calories\t%s\n", FormatEnergy(t.Calories))
	w.Flush()
}

// Help renders the command table plus the keyboard shortcut hint.
func (d *Display) Help(reg *Registry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintln(d.out, "Available Commands")
	w := tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMAND\tALIASES\tDESCRIPTION\tUSAGE")
	for pair := reg.commands.Oldest(); pair != nil; pair = pair.Next() {
		cmd := pair.Value
		aliases := strings.Join(cmd.Aliases, ", ")
		if aliases == "" {
			aliases = "-"
		}
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", cmd.Name, aliases, cmd.Description, usage)
	}
	w.Flush()
	fmt.Fprintln(d.out, d.faint.Sprint("Keyboard shortcuts: Ctrl+C to interrupt, Ctrl+D to exit"))
}

// StartLive enables live rendering and prints the toggle hint.
func (d *Display) StartLive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveEnabled = true
	fmt.Fprintf(d.out, "%s %s\n", d.cyan.Sprint("Info:"), "Live display enabled ['live' to disable]")
}

// StopLive disables live rendering. Safe to call when already off.
func (d *Display) StopLive() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveEnabled = false
}

// LiveEnabled reports whether live rendering is on.
func (d *Display) LiveEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveEnabled
}

// UpdateLive merges a telemetry frame into the live view and prints it as
// one compact line. Frames are cumulative, so the merge replaces the view.
// No-op while live mode is off.
func (d *Display) UpdateLive(frame treadmill.Telemetry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveEnabled {
		return
	}
	d.liveView = frame
	fmt.Fprintln(d.out, liveLine(d.liveView))
}

func liveLine(t treadmill.Telemetry) string {
	return fmt.Sprintf("%s | %s | %s | %s | %s steps | %s",
		t.Status,
		FormatSpeed(t.Speed),
		FormatDistance(t.Distance),
		FormatTime(t.Time),
		formatThousands(t.Steps),
		FormatEnergy(t.Calories))
}

// FormatTime renders elapsed seconds as m:ss.
func FormatTime(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatSpeed renders a speed in km/h with one decimal.
func FormatSpeed(kmh float64) string {
	return fmt.Sprintf("%.1f km/h", kmh)
}

// FormatDistance renders metres, switching to kilometres at 1000 m.
func FormatDistance(meters int) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", float64(meters)/1000)
	}
	return fmt.Sprintf("%d m", meters)
}

// FormatEnergy renders kilocalories.
func FormatEnergy(kcal int) string {
	return fmt.Sprintf("%d kcal", kcal)
}

// formatThousands renders an integer with comma group separators.
func formatThousands(n int) string {
	s := strconv.Itoa(n)
	start := 0
	if strings.HasPrefix(s, "-") {
		start = 1
	}
	digits := len(s) - start
	if digits <= 3 {
		return s
	}
	var b strings.Builder
	b.WriteString(s[:start])
	first := digits % 3
	if first == 0 {
		first = 3
	}
	b.WriteString(s[start : start+first])
	for i := start + first; i < len(s); i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
