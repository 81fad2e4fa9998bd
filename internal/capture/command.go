package capture

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"plansheet/internal/model"
)

// Placeholders substituted in Command.Args.
const (
	PlaceholderInput       = "{input}"
	PlaceholderOutput      = "{output}"
	PlaceholderOrientation = "{orientation}"
)

// Command runs an external converter such as wkhtmltopdf or weasyprint.
// Args may reference {input}, {output} and {orientation}; when neither
// path placeholder appears, input and output are appended in that order.
type Command struct {
	Path    string
	Args    []string
	Timeout time.Duration
}

// ParseCommand splits a command line on whitespace into a Command.
func ParseCommand(line string, timeout time.Duration) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("converter command is empty")
	}
	return &Command{Path: fields[0], Args: fields[1:], Timeout: timeout}, nil
}

func (c *Command) Convert(parentCtx context.Context, htmlPath, pdfPath string, o model.Orientation) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()

	args := c.expand(htmlPath, pdfPath, o)
	cmd := exec.CommandContext(ctx, c.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[len(msg)-300:]
		}
		if msg != "" {
			return fmt.Errorf("%w: %s: %v: %s", ErrConversionFailed, c.Path, err, msg)
		}
		return fmt.Errorf("%w: %s: %v", ErrConversionFailed, c.Path, err)
	}
	if info, err := os.Stat(pdfPath); err != nil || info.Size() == 0 {
		return fmt.Errorf("%w: %s exited 0 but wrote no output at %s", ErrConversionFailed, c.Path, pdfPath)
	}
	return nil
}

func (c *Command) expand(in, out string, o model.Orientation) []string {
	args := make([]string, 0, len(c.Args)+2)
	usedPath := false
	for _, a := range c.Args {
		if strings.Contains(a, PlaceholderInput) || strings.Contains(a, PlaceholderOutput) {
			usedPath = true
		}
		a = strings.ReplaceAll(a, PlaceholderInput, in)
		a = strings.ReplaceAll(a, PlaceholderOutput, out)
		a = strings.ReplaceAll(a, PlaceholderOrientation, string(o))
		args = append(args, a)
	}
	if !usedPath {
		args = append(args, in, out)
	}
	return args
}
