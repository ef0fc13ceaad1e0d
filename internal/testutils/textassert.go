package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the slice of *testing.T the asserters need.
type TestingT interface {
	Errorf(format string, args ...interface{})
}

// TextAssertOptions control how output is normalized before diffing. The
// defaults suit CLI output: tabwriter pads lines with trailing spaces, and
// captured output usually ends in a newline the expectation does not carry.
type TextAssertOptions struct {
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	TrimSpace                bool `default:"true"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for configuring TextAsserter
type TextOption func(*TextAssertOptions)

// TextAsserter compares multi-line terminal output and reports mismatches
// as a unified diff.
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

// NewTextAsserter creates a new TextAsserter with default options
func NewTextAsserter(t TestingT) *TextAsserter {
	opts := TextAssertOptions{}
	defaults.SetDefaults(&opts)
	return &TextAsserter{
		t:       t,
		options: opts,
	}
}

// WithOptions applies functional options to the TextAsserter
func (ta *TextAsserter) WithOptions(opts ...TextOption) *TextAsserter {
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

// Assert compares actual text against expected text
func (ta *TextAsserter) Assert(actual, expected string) {
	diff := ta.diff(actual, expected)
	if diff != "" {
		ta.t.Errorf("Text assertion failed - unified diff:\n%s", diff)
	}
}

// Contains asserts that actual contains the expected fragment after
// normalization.
func (ta *TextAsserter) Contains(actual, fragment string) {
	if !strings.Contains(ta.normalize(actual), ta.normalize(fragment)) {
		ta.t.Errorf("Text assertion failed - output does not contain:\n%s\n\nactual output:\n%s", fragment, actual)
	}
}

func (ta *TextAsserter) diff(actual, expected string) string {
	normalizedActual := ta.normalize(actual)
	normalizedExpected := ta.normalize(expected)

	if normalizedActual == normalizedExpected {
		return ""
	}

	edits := myers.ComputeEdits("", normalizedExpected, normalizedActual)
	unified := gotextdiff.ToUnified("expected", "actual", normalizedExpected, edits)

	return ta.colorizeUnifiedDiff(fmt.Sprint(unified))
}

// colorizeUnifiedDiff applies colors to unified diff output
func (ta *TextAsserter) colorizeUnifiedDiff(diff string) string {
	if !ta.options.EnableColors {
		return diff
	}

	red := color.New(color.FgRed)
	red.EnableColor()
	green := color.New(color.FgGreen)
	green.EnableColor()
	cyan := color.New(color.FgCyan)
	cyan.EnableColor()
	yellow := color.New(color.FgYellow)
	yellow.EnableColor()

	lines := strings.Split(diff, "\n")
	colorized := make([]string, 0, len(lines))
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "---") || strings.HasPrefix(line, "+++"):
			colorized = append(colorized, yellow.Sprint(line))
		case strings.HasPrefix(line, "@@"):
			colorized = append(colorized, cyan.Sprint(line))
		case strings.HasPrefix(line, "-"):
			colorized = append(colorized, red.Sprint(line))
		case strings.HasPrefix(line, "+"):
			colorized = append(colorized, green.Sprint(line))
		default:
			colorized = append(colorized, line)
		}
	}

	return strings.Join(colorized, "\n")
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	lines := strings.Split(text, "\n")

	var result []string
	for _, line := range lines {
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		if ta.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		result = append(result, line)
	}

	return strings.Join(result, "\n")
}

// Functional option constructors

// WithIgnoreTrailingWhitespace sets whether to ignore trailing whitespace on each line
func WithIgnoreTrailingWhitespace(ignore bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.IgnoreTrailingWhitespace = ignore
	}
}

// WithIgnoreEmptyLines sets whether to ignore empty lines
func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.IgnoreEmptyLines = ignore
	}
}

// WithTrimSpace sets whether to trim leading and trailing whitespace from entire text
func WithTrimSpace(trim bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.TrimSpace = trim
	}
}

// WithEnableColors sets whether to enable colored diff output
func WithEnableColors(enable bool) TextOption {
	return func(opts *TextAssertOptions) {
		opts.EnableColors = enable
	}
}
