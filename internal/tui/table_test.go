package tui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *Table {
	return &Table{
		Title:   "Loaded into alice_retinal",
		Headers: []string{"table", "rows"},
		Rows: [][]string{
			{"subject", "2"},
			{"session", "3"},
		},
		Footer:  []string{"total", "5"},
		Numeric: []int{1},
	}
}

func TestTable_Plain(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleTable().Render(&buf, false))

	want := "Loaded into alice_retinal\n" +
		"table\trows\n" +
		"subject\t2\n" +
		"session\t3\n" +
		"total\t5\n"
	assert.Equal(t, want, buf.String())
}

func TestTable_PlainWithoutTitleOrFooter(t *testing.T) {
	tbl := &Table{Headers: []string{"a"}, Rows: [][]string{{"1"}}}
	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf, false))
	assert.Equal(t, "a\n1\n", buf.String())
}

func TestTable_Styled(t *testing.T) {
	tbl := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, tbl.Render(&buf, true))

	out := buf.String()
	for _, s := range []string{"Loaded into alice_retinal", "table", "rows", "subject", "session", "total", "5"} {
		assert.Contains(t, out, s)
	}
	assert.Contains(t, out, "╭", "rounded border expected")
	assert.True(t, strings.HasSuffix(out, "\n"))

	// Rendering must not mutate the caller's rows.
	assert.Len(t, tbl.Rows, 2)
}
