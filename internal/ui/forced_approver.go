package ui

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vvka-141/rgpipe/pkg/rgpipe"
)

//go:embed assets/warning.txt
var dangerBanner string

// ForcedApprover approves after a visible countdown. It backs --force.
type ForcedApprover struct {
	output    io.Writer
	countdown time.Duration
	sleepFn   func(time.Duration)
}

func NewForcedApprover() *ForcedApprover {
	return &ForcedApprover{
		output:    os.Stderr,
		countdown: rgpipe.DefaultForceApprovalCountdown,
		sleepFn:   time.Sleep,
	}
}

// RequestApproval returns ctx.Err() if ctx ends during the countdown.
func (a *ForcedApprover) RequestApproval(ctx context.Context, target string) (bool, error) {
	fmt.Fprintln(a.output)
	fmt.Fprint(a.output, strings.ReplaceAll(dangerBanner, "${target}", target))
	fmt.Fprintln(a.output)

	for i := int(a.countdown.Seconds()); i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\rDropping in: %d seconds... (Ctrl+C to cancel)", i)
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\rProceeding with drop of %s...                    \n", target)
	return true, nil
}

var _ rgpipe.Approver = (*ForcedApprover)(nil)
