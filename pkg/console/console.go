package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/bootsum/bootsum/pkg/verify"
)

var (
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	testStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			Align(lipgloss.Center).
			Padding(0, 1)
)

// Console renders verification output on the boot terminal. Out, In,
// Interactive, and Styled are public so tests can substitute pipes and
// force a mode.
type Console struct {
	Out         io.Writer
	In          *os.File
	Interactive bool
	Styled      bool

	progressShown bool
	lastDecile    int

	keys    chan byte
	keyOnce sync.Once
}

// New builds a Console for stdout/stdin. color is "auto", "always",
// or "never".
func New(color string) *Console {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	return &Console{
		Out:         os.Stdout,
		In:          os.Stdin,
		Interactive: interactive,
		Styled:      color == "always" || (color == "auto" && interactive),
		lastDecile:  -1,
	}
}

func (c *Console) tag(s lipgloss.Style, text string) string {
	if !c.Styled {
		return text
	}
	return s.Render(text)
}

func (c *Console) line(s lipgloss.Style, tag, format string, args ...any) {
	c.clearProgress()
	fmt.Fprintf(c.Out, "%s %s\n", c.tag(s, tag), fmt.Sprintf(format, args...))
}

func (c *Console) Infof(format string, args ...any) {
	c.line(infoStyle, "[INFO]", format, args...)
}

func (c *Console) Okf(format string, args ...any) {
	c.line(okStyle, "[ OK ]", format, args...)
}

func (c *Console) Warnf(format string, args ...any) {
	c.line(warnStyle, "[WARN]", format, args...)
}

func (c *Console) Failf(format string, args ...any) {
	c.line(failStyle, "[FAIL]", format, args...)
}

func (c *Console) Testf(format string, args ...any) {
	c.line(testStyle, "[TEST]", format, args...)
}

// Noticef prints a highlighted line without a level tag.
func (c *Console) Noticef(format string, args ...any) {
	c.clearProgress()
	fmt.Fprintf(c.Out, "%s\n", c.tag(warnStyle, fmt.Sprintf(format, args...)))
}

// Banner draws the startup banner. Non-interactive output gets a
// plain line instead of a box.
func (c *Console) Banner(title string) {
	if !c.Interactive {
		fmt.Fprintf(c.Out, "%s\n", title)
		return
	}
	width := 79
	if tw, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && tw > 2 && tw < width+2 {
		width = tw - 2
	}
	box := bannerStyle.Width(width)
	if c.Styled {
		box = box.BorderForeground(lipgloss.Color("6"))
	}
	fmt.Fprintln(c.Out, box.Render(title))
}

// Progress shows the running entry counter. Interactive terminals get
// a single rewritten line; everything else gets one line per decile.
func (c *Console) Progress(current, total int) {
	percent := 100
	if total > 0 {
		percent = current * 100 / total
	}
	if c.Interactive {
		fmt.Fprintf(c.Out, "\r\033[KVerifying: %d/%d (%d%%)", current, total, percent)
		c.progressShown = true
		return
	}
	decile := percent / 10
	if decile == c.lastDecile && current != total {
		return
	}
	c.lastDecile = decile
	fmt.Fprintf(c.Out, "Verifying: %d/%d (%d%%)\n", current, total, percent)
}

// EndProgress terminates a pending rewritten progress line.
func (c *Console) EndProgress() {
	if c.progressShown {
		fmt.Fprint(c.Out, "\n")
		c.progressShown = false
	}
}

func (c *Console) clearProgress() {
	if c.progressShown {
		fmt.Fprint(c.Out, "\r\033[K")
		c.progressShown = false
	}
}

// Failure prints one failed entry. Mismatch errors already carry the
// path in their message.
func (c *Console) Failure(f verify.Failure) {
	var mismatch *verify.MismatchError
	if errors.As(f.Err, &mismatch) {
		c.Failf("%v", f.Err)
		return
	}
	c.Failf("%s: %v", f.Path, f.Err)
}

func (c *Console) ProgressSink() verify.ProgressSink {
	return verify.ProgressFunc(c.Progress)
}

func (c *Console) FailureSink() verify.FailureSink {
	return verify.FailureFunc(c.Failure)
}

// HumanBytes formats a byte count for display.
func HumanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf(
			"%.1f GB", float64(n)/(1<<30),
		)
	case n >= 1<<20:
		return fmt.Sprintf(
			"%.1f MB", float64(n)/(1<<20),
		)
	case n >= 1<<10:
		return fmt.Sprintf(
			"%.1f KB", float64(n)/(1<<10),
		)
	default:
		return fmt.Sprintf("%d B", n)
	}
}
