package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/text/encoding/charmap"
)

// maxOutputBytes caps how much ping output is kept per burst
const maxOutputBytes = 64 * 1024

// waitDelay bounds how long a killed ping may hold its output pipe open
const waitDelay = 500 * time.Millisecond

// CommandExecutor runs an external command, streaming its stdout into w
type CommandExecutor interface {
	Run(ctx context.Context, name string, args []string, w io.Writer) error
}

// systemExecutor implements CommandExecutor using os/exec
type systemExecutor struct{}

func (systemExecutor) Run(ctx context.Context, name string, args []string, w io.Writer) error {
	return command(ctx, name, args, w).Run()
}

func command(ctx context.Context, name string, args []string, w io.Writer) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = w
	cmd.WaitDelay = waitDelay
	return cmd
}

// ExecProbe invokes the platform ping command and parses its text output
type ExecProbe struct {
	BaseProbe
	executor CommandExecutor
	goos     string
}

// NewExecProbe creates a probe that shells out to ping
func NewExecProbe(name, host string, timeout time.Duration, pings int) *ExecProbe {
	if pings < 1 {
		pings = 1
	}
	return &ExecProbe{
		BaseProbe: BaseProbe{
			TargetName: name,
			TargetHost: host,
			Timeout:    timeout,
			Pings:      pings,
		},
		executor: systemExecutor{},
		goos:     runtime.GOOS,
	}
}

// SetExecutor replaces the command executor (used by tests)
func (p *ExecProbe) SetExecutor(e CommandExecutor) {
	p.executor = e
}

// Type returns "exec"
func (p *ExecProbe) Type() string {
	return "exec"
}

// Args returns the ping arguments for the current platform
func (p *ExecProbe) Args() []string {
	count := strconv.Itoa(p.Pings)
	if p.goos == "windows" {
		return []string{"-n", count, p.TargetHost}
	}
	return []string{"-c", count, p.TargetHost}
}

// Execute runs one ping burst. A non-zero exit status is expected when
// packets are lost and still yields a parsed Sample.
func (p *ExecProbe) Execute(ctx context.Context) (Sample, error) {
	start := time.Now()

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	out := &boundedBuffer{limit: maxOutputBytes}
	err := p.executor.Run(ctx, "ping", p.Args(), out)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) && ctx.Err() == nil {
		s := p.NewSample(start, Parsed{})
		s.Error = err.Error()
		return s, fmt.Errorf("%w: %s: %v", ErrLaunch, p.TargetHost, err)
	}

	sample := p.NewSample(start, ParseOutput(decodeLatin1(out.Bytes())))
	if ctx.Err() != nil {
		sample.Error = fmt.Sprintf("ping timed out after %s", p.Timeout)
	} else if exitErr != nil && !sample.Reachable() {
		sample.Error = exitErr.Error()
	}
	return sample, nil
}

// decodeLatin1 turns ping output into UTF-8. Windows ping writes in the
// console code page, which for the supported locales is Latin-1 compatible.
func decodeLatin1(raw []byte) string {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

// boundedBuffer keeps at most limit bytes and silently discards the rest,
// so a chatty child process never blocks on a full pipe
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
