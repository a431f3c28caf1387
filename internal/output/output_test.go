package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_PlainMessagesCarryNoEscapeCodes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Success("indexed")
	w.Warning("degraded")
	w.Error("failed")

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "indexed")
	assert.Contains(t, out, "degraded")
	assert.Contains(t, out, "failed")
}

func TestWriter_ColorWrapsMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, true)

	w.Success("done")

	assert.Contains(t, buf.String(), colorGreen+"done"+colorReset)
}

func TestWriter_CodeIndentsEveryLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Code("line one\nline two")

	assert.Contains(t, buf.String(), "  line one\n  line two\n")
}

func TestWriter_ProgressCompletesWithNewline(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithColor(&buf, false)

	w.Progress(5, 10, "halfway")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	w.Progress(10, 10, "done")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "100%")
}

func TestRenderProgressBar_Bounds(t *testing.T) {
	assert.Equal(t, strings.Repeat("░", 10), renderProgressBar(0, 0, 10))
	assert.Equal(t, strings.Repeat("█", 10), renderProgressBar(12, 10, 10))
}
