package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// TerminalConfirmer asks y/N questions on a terminal.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer
	// AssumeYes answers every question with yes without asking.
	AssumeYes bool
}

func (c TerminalConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	if c.AssumeYes {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(c.Out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
