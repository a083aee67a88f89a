package progress

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReportIncludesLabelAndFigures(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, "iteration 1/10")
	bar.Report(1000, 0.25, 0.5)

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "\r"))
	require.Contains(t, out, "iteration 1/10")
	require.Contains(t, out, "update 25.00%")
	require.Contains(t, out, "density 0.5000")
}

func TestDoneAppendsNewline(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, "x")
	bar.Done()
	require.Equal(t, "\n", buf.String())
}

func TestTruncateRespectsWidth(t *testing.T) {
	require.Equal(t, "hello", truncate("hello world", 5))
	require.Equal(t, "hi", truncate("hi", 5))
	require.Equal(t, "hi", truncate("hi", 0))
}
