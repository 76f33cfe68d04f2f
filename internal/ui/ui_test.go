package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFieldsMarksEmptyValues(t *testing.T) {
	var buf bytes.Buffer
	WriteFields(&buf, "Access point 101", []Field{
		{Key: "Hostname", Value: "ap-lobby"},
		{Key: "Serial", Value: ""},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Access point 101")
	assert.Contains(t, lines[1], "Hostname")
	assert.Contains(t, lines[1], "ap-lobby")
	assert.Contains(t, lines[2], "Serial")
	assert.True(t, strings.HasSuffix(lines[2], Dim("-")))
}

func TestSeverityKeepsLabel(t *testing.T) {
	for _, label := range []string{"OK", "WARNING", "CRITICAL", "UNKNOWN"} {
		assert.Contains(t, Severity(label), label)
	}
}
