package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

// InteractiveApprover asks the user to type the target name.
type InteractiveApprover struct {
	input  io.Reader
	output io.Writer
}

func NewInteractiveApprover() *InteractiveApprover {
	return &InteractiveApprover{input: os.Stdin, output: os.Stderr}
}

// RequestApproval approves only an exact match of target.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	fmt.Fprintf(a.output, "\nWARNING: this drops every retinal table in %q.\n", target)
	fmt.Fprintf(a.output, "To confirm, type %q and press Enter: ", target)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(a.input).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return false, fmt.Errorf("read confirmation: %w", r.err)
		}
		if r.line != target {
			fmt.Fprintf(a.output, "Input %q does not match %q. Cancelled.\n", r.line, target)
			return false, nil
		}
		fmt.Fprintln(a.output, "Confirmed.")
		return true, nil
	}
}

var _ rgpipe.Approver = (*InteractiveApprover)(nil)
