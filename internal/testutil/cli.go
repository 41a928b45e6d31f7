package testutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

// The cstudio binary is built once per test process.
var (
	buildOnce sync.Once
	builtPath string
	buildErr  error
)

// CLIResult is a decoded --json envelope plus what the process left behind.
type CLIResult struct {
	OK       bool                   `json:"ok"`
	Data     map[string]interface{} `json:"data"`
	Error    *CLIError              `json:"error"`
	Warnings []CLIWarning           `json:"warnings"`
	Meta     *CLIMeta               `json:"meta"`

	RawJSON  string `json:"-"`
	Stderr   string `json:"-"`
	ExitCode int    `json:"-"`
}

type CLIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details"`
	Suggestion string                 `json:"suggestion"`
}

type CLIWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Ref     string `json:"ref"`
}

type CLIMeta struct {
	Count       int   `json:"count"`
	QueryTimeMs int64 `json:"query_time_ms"`
}

// BuildCLI compiles ./cmd/cstudio into a temp directory and returns the
// binary path. RunCLI calls it; the build happens once per process.
func BuildCLI(t *testing.T) string {
	t.Helper()
	buildOnce.Do(func() {
		builtPath, buildErr = buildBinary()
	})
	if buildErr != nil {
		t.Fatalf("failed to build CLI: %v", buildErr)
	}
	return builtPath
}

func buildBinary() (string, error) {
	root, err := moduleRoot()
	if err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp("", "cstudio-cli-bin-*")
	if err != nil {
		return "", err
	}
	name := "cstudio"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	out := filepath.Join(dir, name)

	cmd := exec.Command("go", "build", "-o", out, "./cmd/cstudio")
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("%w\n%s", err, output)
	}
	return out, nil
}

// moduleRoot walks up from the working directory to the nearest go.mod.
func moduleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("go.mod not found")
		}
		dir = parent
	}
}

// RunCLI runs cstudio with --json against the project, using an isolated
// global config, and decodes the envelope.
func (p *TestProject) RunCLI(args ...string) *CLIResult {
	p.t.Helper()
	return p.RunCLIWithStdin("", args...)
}

// RunCLIWithStdin is RunCLI with stdin attached.
func (p *TestProject) RunCLIWithStdin(stdin string, args ...string) *CLIResult {
	p.t.Helper()

	cmd := exec.Command(BuildCLI(p.t), append([]string{"--project-path", p.Path, "--json"}, args...)...)
	cmd.Env = append(os.Environ(), "CSTUDIO_CONFIG="+filepath.Join(p.t.TempDir(), "config.toml"))
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, runErr := cmd.Output()

	r := &CLIResult{RawJSON: string(output), Stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case errors.As(runErr, &exitErr):
		r.ExitCode = exitErr.ExitCode()
	case runErr != nil:
		r.ExitCode = -1
	}

	if err := json.Unmarshal(output, r); err != nil {
		r.OK = false
		r.Error = &CLIError{
			Code:    "PARSE_ERROR",
			Message: "failed to decode output: " + err.Error(),
			Details: map[string]interface{}{"stderr": r.Stderr},
		}
	}
	return r
}

func (r *CLIResult) describe() string {
	return fmt.Sprintf("\nRaw output: %s\nStderr: %s", r.RawJSON, r.Stderr)
}

// MustSucceed stops the test unless the command reported ok.
func (r *CLIResult) MustSucceed(t *testing.T) *CLIResult {
	t.Helper()
	if r.OK {
		return r
	}
	msg := "no error envelope"
	if r.Error != nil {
		msg = r.Error.Code + ": " + r.Error.Message
	}
	t.Fatalf("command failed: %s%s", msg, r.describe())
	return r
}

// MustFail stops the test unless the command failed with code.
func (r *CLIResult) MustFail(t *testing.T, code string) *CLIResult {
	t.Helper()
	switch {
	case r.OK:
		t.Fatalf("command succeeded, want %s%s", code, r.describe())
	case r.Error == nil:
		t.Fatalf("no error envelope, want %s%s", code, r.describe())
	case r.Error.Code != code:
		t.Fatalf("error code = %s (%s), want %s%s", r.Error.Code, r.Error.Message, code, r.describe())
	}
	return r
}

// DataList returns data[key] as a list, or nil.
func (r *CLIResult) DataList(key string) []interface{} {
	v, _ := r.Data[key].([]interface{})
	return v
}

func (r *CLIResult) DataString(key string) string {
	v, _ := r.Data[key].(string)
	return v
}

// DataInt returns data[key], a JSON number, as an int.
func (r *CLIResult) DataInt(key string) int {
	v, _ := r.Data[key].(float64)
	return int(v)
}

func (r *CLIResult) DataBool(key string) bool {
	v, _ := r.Data[key].(bool)
	return v
}

// AssertResultCount checks len(data[key]).
func (r *CLIResult) AssertResultCount(t *testing.T, key string, want int) {
	t.Helper()
	if got := len(r.DataList(key)); got != want {
		t.Errorf("len(data.%s) = %d, want %d%s", key, got, want, r.describe())
	}
}
