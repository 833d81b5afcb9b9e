package gc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	assert.Equal(t,
		[]string{"/bin/registry", "garbage-collect", "--delete-untagged", "/etc/docker/registry/config.yml"},
		command(DefaultBinary, DefaultConfig, false))
	assert.Equal(t,
		[]string{"/bin/registry", "garbage-collect", "--delete-untagged", "--dry-run", "/etc/docker/registry/config.yml"},
		command(DefaultBinary, DefaultConfig, true))
}

// stubRegistry writes a shell script standing in for the registry binary.
func stubRegistry(t *testing.T, exitCode int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry")
	script := fmt.Sprintf("#!/bin/sh\necho sweeping \"$@\"\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestLocalCollector(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := &LocalCollector{Binary: stubRegistry(t, 0), Config: "config.yml"}
		assert.NoError(t, c.Collect(context.Background(), false))
	})

	t.Run("collector exit status surfaces", func(t *testing.T) {
		c := &LocalCollector{Binary: stubRegistry(t, 3), Config: "config.yml"}
		err := c.Collect(context.Background(), false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 3")
	})

	t.Run("missing binary", func(t *testing.T) {
		c := &LocalCollector{Binary: "/no/such/registry", Config: "config.yml"}
		assert.Error(t, c.Collect(context.Background(), false))
	})
}

type stubExecer struct {
	cmds [][]string
	code int
	out  string
	err  error
}

func (s *stubExecer) Exec(_ context.Context, cmd []string) (int, string, error) {
	s.cmds = append(s.cmds, cmd)
	return s.code, s.out, s.err
}

func TestExecCollector(t *testing.T) {
	t.Run("passes dry-run through to the collector", func(t *testing.T) {
		execer := &stubExecer{out: "sweeping\n"}
		c := NewExecCollector(execer)
		require.NoError(t, c.Collect(context.Background(), true))
		require.Len(t, execer.cmds, 1)
		assert.Contains(t, execer.cmds[0], "--dry-run")
		assert.Contains(t, execer.cmds[0], "--delete-untagged")
	})

	t.Run("non-zero exit is an error", func(t *testing.T) {
		c := NewExecCollector(&stubExecer{code: 1})
		assert.Error(t, c.Collect(context.Background(), false))
	})

	t.Run("exec transport failure", func(t *testing.T) {
		c := NewExecCollector(&stubExecer{err: errors.New("socket closed")})
		assert.Error(t, c.Collect(context.Background(), false))
	})
}
