// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package clitest provides utilities for testing command-line applications.
package clitest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"go.astrophena.name/openclaw/internal/cli"
)

// Case represents a single test case for a command-line application.
type Case[App cli.App] struct {
	// Args are the command-line arguments to pass to the application.
	Args []string
	// Stdin is the optional standard input to pass to the application.
	Stdin io.Reader
	// Env is the environment visible to the application. Variables of the
	// process environment are never visible.
	Env map[string]string
	// WantErr is the expected error, checked with errors.Is.
	WantErr error
	// WantErrContains is a substring of the expected error message.
	WantErrContains string
	// WantNothingPrinted indicates that nothing should be written to stdout
	// or stderr.
	WantNothingPrinted bool
	// WantInStdout is a substring expected in stdout.
	WantInStdout string
	// WantInStderr is a substring expected in stderr.
	WantInStderr string
	// CheckFunc, if set, performs additional checks after the run.
	CheckFunc func(*testing.T, App)
}

// Run runs the provided test cases against the application returned by setup.
// Each case gets a fresh application and runs in parallel.
func Run[App cli.App](t *testing.T, setup func(*testing.T) App, cases map[string]Case[App]) {
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			app := setup(t)

			stdin := tc.Stdin
			if stdin == nil {
				stdin = strings.NewReader("")
			}
			var stdout, stderr bytes.Buffer
			env := &cli.Env{
				Args:   tc.Args,
				Getenv: getenvFunc(tc.Env),
				Stdin:  stdin,
				Stdout: &stdout,
				Stderr: &stderr,
			}

			err := cli.Run(cli.WithEnv(context.Background(), env), app)
			checkErr(t, err, tc.WantErr, tc.WantErrContains)

			if tc.WantNothingPrinted {
				if stdout.Len() > 0 {
					t.Errorf("stdout must be empty, got: %q", stdout.String())
				}
				if stderr.Len() > 0 {
					t.Errorf("stderr must be empty, got: %q", stderr.String())
				}
			}
			if tc.WantInStdout != "" && !strings.Contains(stdout.String(), tc.WantInStdout) {
				t.Errorf("stdout must contain %q, got: %q", tc.WantInStdout, stdout.String())
			}
			if tc.WantInStderr != "" && !strings.Contains(stderr.String(), tc.WantInStderr) {
				t.Errorf("stderr must contain %q, got: %q", tc.WantInStderr, stderr.String())
			}

			if tc.CheckFunc != nil {
				tc.CheckFunc(t, app)
			}
		})
	}
}

func checkErr(t *testing.T, err, want error, wantContains string) {
	t.Helper()
	expectFailure := want != nil || wantContains != ""
	switch {
	case err == nil && expectFailure:
		t.Fatalf("must fail (want %v %q)", want, wantContains)
	case err != nil && !expectFailure:
		t.Fatalf("unexpected error: %v", err)
	case err == nil:
		return
	}
	if want != nil && !errors.Is(err, want) {
		t.Fatalf("want error %v, got %v", want, err)
	}
	if wantContains != "" && !strings.Contains(err.Error(), wantContains) {
		t.Fatalf("error must contain %q, got %v", wantContains, err)
	}
}

func getenvFunc(env map[string]string) func(string) string {
	return func(name string) string { return env[name] }
}
