package uci

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Process is a running engine with line-oriented pipes.
type Process interface {
	Stdin() io.Writer
	Stdout() io.Reader

	// Kill terminates the process. It must unblock pending reads.
	Kill() error
}

// Launcher starts engine processes.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// Command launches an engine binary.
type Command struct {
	Path string
	Args []string
}

// Compile-time check that Command implements Launcher.
var _ Launcher = Command{}

// Launch starts the binary with piped stdin and stdout.
func (c Command) Launch(ctx context.Context) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.Path, c.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", c.Path, err)
	}
	return &execProcess{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	once   sync.Once
	err    error
}

func (p *execProcess) Stdin() io.Writer  { return p.stdin }
func (p *execProcess) Stdout() io.Reader { return p.stdout }

func (p *execProcess) Kill() error {
	p.once.Do(func() {
		_ = p.stdin.Close()
		if err := p.cmd.Process.Kill(); err != nil {
			p.err = fmt.Errorf("killing engine: %w", err)
		}
		// Wait closes stdout, which releases the session's reader.
		_ = p.cmd.Wait()
	})
	return p.err
}
