package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vczyh/mysql-cdc/auth"
	"github.com/vczyh/mysql-cdc/positionstore"
	"github.com/vczyh/mysql-cdc/server"
)

func startSource(t *testing.T) *server.Server {
	users := server.NewMemoryUserProvider()
	require.NoError(t, users.Create(&server.CreateUserRequest{
		User:     "repl",
		Password: "repl-pw",
		Method:   auth.MySQLNativePassword,
	}))
	s := server.NewServer(server.WithPort(0), server.WithUserProvider(users))
	require.NoError(t, s.Start())
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func writeConfig(t *testing.T, s *server.Server, dir string) string {
	content := fmt.Sprintf(`
source:
  port: %d
  user: repl
replica:
  start: position
  file: mysql-bin.000001
  blocking: false
store:
  type: file
  file: %s
log:
  file: %s
  format: json
`, s.Port(), filepath.Join(dir, "position.toml"), filepath.Join(dir, "binlogtail.log"))

	file := filepath.Join(dir, "binlogtail.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0644))
	return file
}

func execute(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStreamSavesPosition(t *testing.T) {
	s := startSource(t)
	_, err := s.Binlog().Exec("shop", "CREATE TABLE orders (id INT)")
	require.NoError(t, err)

	dir := t.TempDir()
	file := writeConfig(t, s, dir)

	out, err := execute(t, "--config", file, "--password", "repl-pw")
	require.NoError(t, err, out)

	name, size, _ := s.Binlog().Status()
	p, ok, err := positionstore.NewFileStore(filepath.Join(dir, "position.toml")).Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, name, p.Name)
	assert.Equal(t, size, p.Pos)

	logs, err := os.ReadFile(filepath.Join(dir, "binlogtail.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logs), "CREATE TABLE orders (id INT)")

	out, err = execute(t, "position", "--config", file)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("file: %s\npos: %d\n", name, size), out)

	// a second run resumes at the saved position and sees nothing new
	_, err = s.Binlog().Exec("shop", "DROP TABLE orders")
	require.NoError(t, err)
	out, err = execute(t, "--config", file, "--password", "repl-pw")
	require.NoError(t, err, out)

	logs, err = os.ReadFile(filepath.Join(dir, "binlogtail.log"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(logs), "CREATE TABLE orders"))
	assert.Contains(t, string(logs), "DROP TABLE orders")
}

func TestStreamAuthFailure(t *testing.T) {
	s := startSource(t)
	file := writeConfig(t, s, t.TempDir())

	_, err := execute(t, "--config", file, "--password", "wrong")
	assert.Error(t, err)
}
