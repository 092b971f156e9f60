// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool
	runnableCmds  map[string]bool
	runPipedFunc  func(name string, args []string, stdin io.Reader, stdout io.Writer) error
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdin, stdout)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	both := &mockExecutor{
		availableBins: map[string]bool{"docker": true, "podman": true},
		runnableCmds:  map[string]bool{"docker info": true, "podman info": true},
	}
	tests := []struct {
		name      string
		exec      *mockExecutor
		preferred string
		wantName  string
		wantErr   string
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "docker on PATH but info fails",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{name: "both available, docker first", exec: both, wantName: "docker"},
		{name: "podman preferred", exec: both, preferred: "podman", wantName: "podman"},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: "no container runtime available",
		},
		{
			name:      "preferred runtime missing",
			exec:      &mockExecutor{availableBins: map[string]bool{"docker": true}, runnableCmds: map[string]bool{"docker info": true}},
			preferred: "podman",
			wantErr:   "tried podman",
		},
		{name: "unknown preference", exec: both, preferred: "lxc", wantErr: "unknown container runtime"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec, tt.preferred)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	tests := []struct {
		name    string
		bin     string
		cmds    map[string]bool
		wantErr bool
	}{
		{"docker image exists", "docker", map[string]bool{"docker image inspect markitdown:latest": true}, false},
		{"docker image missing", "docker", nil, true},
		{"podman image exists", "podman", map[string]bool{"podman image exists markitdown:latest": true}, false},
		{"podman image missing", "podman", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(tt.bin, &mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), "markitdown:latest")
			if tt.wantErr {
				assert.ErrorContains(t, err, "markitdown:latest")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	var gotArgs []string
	exec := &mockExecutor{runPipedFunc: func(name string, args []string, stdin io.Reader, stdout io.Writer) error {
		gotArgs = append([]string{name}, args...)
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte("converted: " + string(data)))
		return nil
	}}
	var out bytes.Buffer
	require.NoError(t, newRuntime("podman", exec).Run(context.Background(), "markitdown:latest", strings.NewReader("pdf"), &out))

	assert.Equal(t, "converted: pdf", out.String())
	assert.Equal(t, []string{"podman", "run", "--rm", "-i", "--network", "none", "markitdown:latest"}, gotArgs)
}

func TestRun_Failure(t *testing.T) {
	exec := &mockExecutor{runPipedFunc: func(string, []string, io.Reader, io.Writer) error {
		return errors.New("container exited with code 1")
	}}
	err := newRuntime("docker", exec).Run(context.Background(), "img", strings.NewReader(""), io.Discard)
	assert.ErrorContains(t, err, "running docker container img")
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "boom", lastLine("warning\nboom"))
	assert.Equal(t, "only", lastLine("only"))
}
