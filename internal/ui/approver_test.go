package ui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forced(out io.Writer, sleep func(time.Duration)) *ForcedApprover {
	return &ForcedApprover{output: out, countdown: 3 * time.Second, sleepFn: sleep}
}

func TestForcedApprover_ApprovesAfterCountdown(t *testing.T) {
	var out bytes.Buffer
	sleeps := 0

	ok, err := forced(&out, func(time.Duration) { sleeps++ }).RequestApproval(context.Background(), "alice_retinal")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, sleeps)
	assert.Contains(t, out.String(), "DANGER")
	assert.Contains(t, out.String(), "alice_retinal")
	assert.NotContains(t, out.String(), "${target}")
}

func TestForcedApprover_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleeps := 0
	a := forced(io.Discard, func(time.Duration) {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
	})

	ok, err := a.RequestApproval(ctx, "alice_retinal")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
	assert.Equal(t, 2, sleeps)
}

func TestNewForcedApprover_Defaults(t *testing.T) {
	a := NewForcedApprover()
	assert.Equal(t, 5*time.Second, a.countdown)
	assert.NotNil(t, a.sleepFn)
}

func TestInteractiveApprover(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"exact match", "alice_retinal\n", true},
		{"surrounding whitespace", "  alice_retinal  \n", true},
		{"no trailing newline", "alice_retinal", true},
		{"mismatch", "bob_retinal\n", false},
		{"case differs", "ALICE_RETINAL\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			a := &InteractiveApprover{input: strings.NewReader(tt.input), output: &out}

			ok, err := a.RequestApproval(context.Background(), "alice_retinal")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Contains(t, out.String(), `type "alice_retinal"`)
		})
	}
}

func TestInteractiveApprover_EmptyInput(t *testing.T) {
	a := &InteractiveApprover{input: strings.NewReader(""), output: io.Discard}
	_, err := a.RequestApproval(context.Background(), "x")
	assert.ErrorIs(t, err, io.EOF)
}

func TestInteractiveApprover_ContextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := &InteractiveApprover{input: r, output: io.Discard}
	ok, err := a.RequestApproval(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
