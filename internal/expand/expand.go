// Package expand drives the shell-expansion step of manifest parsing.
//
// A manifest is a bash superset, so variable interpolation and arrays are
// resolved by the shell itself rather than by reimplementing its semantics:
// the manifest text is piped through bash together with a trailer that dumps
// every declared variable in normalized declare form followed by every
// function definition. The resulting byte stream is what the structural
// parser consumes.
package expand

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"

	"github.com/pacbuild-project/pacbuild/internal/diag"
)

// DefaultShell is the interpreter used when none is configured.
const DefaultShell = "bash"

// trailer is appended to the manifest text before handing it to the shell.
// It captures the normalized `declare -p` dump, drops everything up to and
// including the shell-internal `_=""` boundary entry so interpreter state is
// excluded, and appends all function definitions in canonical form.
const trailer = `; SOURCED_CODE="$(declare -p | cut -d ' ' -f 3-)"; TAIL="$(echo "$SOURCED_CODE" | grep -m 1 -n '_=""' | cut -d ':' -f 1)"; echo "$SOURCED_CODE" | tail -n +$(($TAIL + 1)); declare -f`

// Expander resolves a raw manifest into its expanded variable/function dump.
// The interface exists so parser tests can substitute a fake for golden
// inputs without a shell on the machine.
type Expander interface {
	Expand(ctx context.Context, source string) ([]byte, error)
}

// Shell is the production Expander: one subprocess per call, no retries.
// Expansion is deterministic for a given input, so a failure is final.
type Shell struct {
	// Path is the shell binary to invoke. Empty means DefaultShell.
	Path string
}

// NewShell returns a Shell expander using the default interpreter.
func NewShell() *Shell {
	return &Shell{Path: DefaultShell}
}

// Expand runs the manifest through the shell and returns the combined
// variable/function dump. A non-zero exit status is the sole failure signal:
// it means arbitrary constructs may have produced unusable output, so the
// whole parse must abort with bad syntax. Standard error is logged at debug
// level but never parsed.
func (s *Shell) Expand(ctx context.Context, source string) ([]byte, error) {
	shell := s.Path
	if shell == "" {
		shell = DefaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", source+trailer)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			slog.Debug("shell expansion failed", "shell", shell, "stderr", stderr.String())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &diag.BadSyntax{
				Reason: fmt.Sprintf("shell expansion exited with status %d", exitErr.ExitCode()),
			}
		}
		return nil, &diag.BadSyntax{Reason: fmt.Sprintf("shell expansion failed: %v", err)}
	}

	return stdout.Bytes(), nil
}

// Static is a canned Expander for tests: it returns a fixed dump and error
// regardless of input, and records every source it was asked to expand.
type Static struct {
	Output []byte
	Err    error
	Calls  []string
}

// Expand returns the configured output and error.
func (s *Static) Expand(_ context.Context, source string) ([]byte, error) {
	s.Calls = append(s.Calls, source)
	return s.Output, s.Err
}
