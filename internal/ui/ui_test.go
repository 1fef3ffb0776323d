package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	prevOut, prevErr := stdout, stderr
	SetOutput(&out, &errOut)
	t.Cleanup(func() { SetOutput(prevOut, prevErr) })
	return &out, &errOut
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░   0%", ProgressBar(0, 0, 10))
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "██████████ 100%", ProgressBar(3, 3, 10))
	assert.Equal(t, "█████ 100%", ProgressBar(9, 3, 1))
}

func TestPanelPadsToWidestLine(t *testing.T) {
	SetTheme("classic")
	got := PanelString([]string{"ab", C(fgGreen, "✔") + " abcd"})
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "┌────────┐", lines[0])
	assert.Equal(t, "│ ab     │", lines[1])
	assert.Equal(t, "└────────┘", lines[3])
}

func TestOKAndFail(t *testing.T) {
	SetColorForcing(false, true)
	t.Cleanup(func() { SetColorForcing(false, false) })
	out, errOut := capture(t)

	OK("added")
	Fail("boom")
	Warn("careful")

	assert.Equal(t, "✔ added\n", out.String())
	assert.Equal(t, "✖ boom\n! careful\n", errOut.String())
}

func TestThemes(t *testing.T) {
	t.Cleanup(func() {
		SetTheme("classic")
		SetColorForcing(false, false)
	})
	for _, name := range Themes {
		SetTheme(name)
		assert.Equal(t, name, Current().Name)
		assert.NotEmpty(t, Current().BoxChecked)
	}
	SetTheme("unknown")
	assert.Equal(t, "classic", Current().Name)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmno", 10))
}
