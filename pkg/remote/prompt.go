package remote

import (
	"context"
	"strings"

	"github.com/pterm/pterm"
	"gitlab.com/tozd/go/errors"
)

// 🔑 TerminalPrompter asks for secrets on the terminal with a masked input
type TerminalPrompter struct{}

func (TerminalPrompter) Secret(ctx context.Context, message string) (string, error) {
	type answer struct {
		value string
		err   error
	}

	ch := make(chan answer, 1)
	go func() {
		v, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show(message)
		ch <- answer{value: v, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", errors.Errorf("waiting for input: %w", ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return "", errors.Errorf("reading input: %w", a.err)
		}
		return strings.TrimSpace(a.value), nil
	}
}

// StaticPrompter answers every prompt with the same value
type StaticPrompter string

func (s StaticPrompter) Secret(ctx context.Context, message string) (string, error) {
	if s == "" {
		return "", errors.New("no answer available for prompt")
	}
	return string(s), nil
}
