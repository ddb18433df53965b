package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// judge0JavaScript is the Judge0 language id for JavaScript (Node.js).
const judge0JavaScript = 63

const judge0Accepted = 3

type Judge0Config struct {
	URL            string
	APIKey         string
	CaseTimeout    time.Duration
	MemoryLimitKB  int
	MaxOutputBytes int
}

// Judge0Runner delegates each case to a Judge0 instance.
type Judge0Runner struct {
	cfg    Judge0Config
	client *http.Client
}

func NewJudge0Runner(cfg Judge0Config) *Judge0Runner {
	if cfg.CaseTimeout <= 0 {
		cfg.CaseTimeout = DefaultCaseTimeout
	}
	if cfg.MemoryLimitKB <= 0 {
		cfg.MemoryLimitKB = 256 * 1024
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = DefaultMaxOutputBytes
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Judge0Runner{
		cfg: cfg,
		// leave headroom for queueing on the Judge0 side
		client: &http.Client{Timeout: cfg.CaseTimeout + 5*time.Second},
	}
}

func (r *Judge0Runner) Name() string {
	return "judge0"
}

type judge0Submission struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	WallTimeLimit  float64 `json:"wall_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
	EnableNetwork  bool    `json:"enable_network"`
	MaxFileSize    int     `json:"max_file_size"`
	RedirectStderr bool    `json:"redirect_stderr_to_stdout"`
}

type judge0Result struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func (r *Judge0Runner) Run(ctx context.Context, code, input string) (string, error) {
	payload, err := encodeHarnessPayload(code, input, r.cfg.CaseTimeout)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}

	// Judge0 runs the ProcessRunner harness; the case travels on stdin
	limit := r.cfg.CaseTimeout.Seconds()
	body, err := json.Marshal(judge0Submission{
		SourceCode:    nodeHarness,
		LanguageID:    judge0JavaScript,
		Stdin:         string(payload),
		CPUTimeLimit:  limit,
		WallTimeLimit: limit * 2,
		MemoryLimit:   r.cfg.MemoryLimitKB,
		MaxFileSize:   r.cfg.MaxOutputBytes / 1024,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.cfg.URL+"/submissions?base64_encoded=false&wait=true", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build judge0 request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("X-Auth-Token", r.cfg.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("judge0 request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("judge0 returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result judge0Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, int64(r.cfg.MaxOutputBytes)*2)).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode judge0 response: %w", err)
	}

	switch {
	case result.Status.ID == judge0Accepted:
	case strings.Contains(strings.ToLower(result.Status.Description), "time limit"):
		return "", ErrTimeout
	default:
		return "", fmt.Errorf("%w: %s", ErrRuntime, result.Status.Description)
	}

	if result.Stdout == nil {
		return "", nil
	}
	if len(*result.Stdout) > r.cfg.MaxOutputBytes {
		return "", ErrOutputTooLarge
	}
	return *result.Stdout, nil
}
