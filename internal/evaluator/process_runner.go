package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	DefaultCaseTimeout    = 2 * time.Second
	DefaultMaxOutputBytes = 64 * 1024
)

// nodeHarness loads the submission into a fresh vm context with a silent
// console, calls solution(input) and prints String(result). The payload
// arrives on stdin. Every runner executes this same harness.
const nodeHarness = `
const vm = require('vm');
let raw = '';
process.stdin.setEncoding('utf8');
process.stdin.on('data', (chunk) => { raw += chunk; });
process.stdin.on('end', () => {
  const payload = JSON.parse(raw);
  const timeout = payload.timeout || 1000;
  const context = vm.createContext({ console: { log() {}, error() {}, warn() {} } });
  vm.runInContext(payload.code, context, { timeout });
  if (typeof context.solution !== 'function') {
    process.stderr.write('solution is not defined');
    process.exit(2);
  }
  context.__input = payload.input;
  const output = vm.runInContext('solution(__input)', context, { timeout });
  process.stdout.write(String(output));
});
`

type harnessPayload struct {
	Code      string `json:"code"`
	Input     string `json:"input"`
	TimeoutMS int64  `json:"timeout"`
}

func encodeHarnessPayload(code, input string, timeout time.Duration) ([]byte, error) {
	return json.Marshal(harnessPayload{Code: code, Input: input, TimeoutMS: timeout.Milliseconds()})
}

type ProcessRunnerConfig struct {
	Command        []string
	CaseTimeout    time.Duration
	MaxOutputBytes int
}

// ProcessRunner executes each case in a short-lived interpreter process with
// an empty environment, a scratch working directory and its own process group.
type ProcessRunner struct {
	command        []string
	caseTimeout    time.Duration
	maxOutputBytes int
}

func NewProcessRunner(cfg ProcessRunnerConfig) *ProcessRunner {
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"node"}
	}
	if cfg.CaseTimeout <= 0 {
		cfg.CaseTimeout = DefaultCaseTimeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	return &ProcessRunner{
		command:        cfg.Command,
		caseTimeout:    cfg.CaseTimeout,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

func (r *ProcessRunner) Name() string {
	return "process"
}

func (r *ProcessRunner) Run(ctx context.Context, code, input string) (string, error) {
	payload, err := encodeHarnessPayload(code, input, r.caseTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	dir, err := os.MkdirTemp("", "evaluator-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ctx, cancel := context.WithTimeout(ctx, r.caseTimeout)
	defer cancel()

	args := append(append([]string{}, r.command[1:]...), "-e", nodeHarness)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Dir = dir
	cmd.Env = []string{}
	cmd.Stdin = bytes.NewReader(payload)

	stdout := &cappedBuffer{limit: r.maxOutputBytes}
	stderr := &cappedBuffer{limit: 4096}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	isolate(cmd)
	cmd.WaitDelay = 500 * time.Millisecond

	err = cmd.Run()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", ErrTimeout
	case ctx.Err() != nil:
		return "", ctx.Err()
	case stdout.overflow:
		return "", ErrOutputTooLarge
	case err != nil:
		return "", fmt.Errorf("%w: %s", ErrRuntime, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

// cappedBuffer keeps at most limit bytes and records whether more arrived.
// It never returns a write error so the child is not killed by SIGPIPE
// before the timeout or exit status can be observed.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room < len(p) {
		b.overflow = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
