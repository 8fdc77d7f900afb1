// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plusdesk/api/schemas"
	"github.com/xkilldash9x/plusdesk/internal/agent"
	"github.com/xkilldash9x/plusdesk/internal/config"
	"github.com/xkilldash9x/plusdesk/internal/service"
	"github.com/xkilldash9x/plusdesk/internal/store"
)

// -- Test Helpers --

type testEnv struct {
	configPath string
	dbPath     string
}

// newTestEnv writes a config file pointing at a seeded SQLite store.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("PLUSDESK_DATABASE_URL", "")
	t.Setenv("PLUSDESK_LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	dir := t.TempDir()
	env := &testEnv{
		configPath: filepath.Join(dir, "config.yaml"),
		dbPath:     filepath.Join(dir, "auth.db"),
	}

	s, err := store.OpenSQLite(env.dbPath, zap.NewNop())
	require.NoError(t, err)
	for _, row := range []schemas.Credential{
		{UserID: 1, Username: "alice", PasswordHash: "h1"},
		{UserID: 2, Username: "bob", PasswordHash: "h2"},
	} {
		_, err := s.DB().Exec(`INSERT INTO auth_password (user_id, username, pwdhash) VALUES (?, ?, ?)`, row.UserID, row.Username, row.PasswordHash)
		require.NoError(t, err)
	}
	require.NoError(t, s.Close())

	yaml := fmt.Sprintf(`
logger:
  level: fatal
  format: json
database:
  driver: sqlite
  sqlite_path: %q
executor:
  max_retries: 1
  initial_backoff: 1ms
`, env.dbPath)
	require.NoError(t, os.WriteFile(env.configPath, []byte(yaml), 0o600))
	return env
}

// run executes the production command tree with the test config.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	return e.runWith(t, NewRootCommand(), stdin, args...)
}

func (e *testEnv) runWith(t *testing.T, root *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) lookup(t *testing.T, username string) *schemas.Credential {
	t.Helper()
	s, err := store.OpenSQLite(e.dbPath, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()
	cred, err := s.LookupCredential(context.Background(), username)
	require.NoError(t, err)
	return cred
}

// -- Test Cases --

func TestVersionAndSchema(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "action schema v"+schemas.SchemaVersion)

	out, err = env.run(t, "", "schema")
	require.NoError(t, err)
	assert.Equal(t, schemas.RenderSchema()+"\n", out)
}

func TestParseCmd(t *testing.T) {
	env := newTestEnv(t)
	payload := `{"action": {"TransferPlus": {"old_username": "alice", "new_username": "bob"}}, "text": "Done!"}`

	t.Run("stdin payload is normalized", func(t *testing.T) {
		out, err := env.run(t, payload, "parse")
		require.NoError(t, err)

		resp, err := schemas.ParseResponse(out)
		require.NoError(t, err)
		assert.Equal(t, schemas.TransferPlusAction("alice", "bob"), resp.Action)
		assert.Equal(t, "Done!", resp.Text)
	})

	t.Run("file payload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "payload.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"action": "Abort", "text": ""}`), 0o600))

		out, err := env.run(t, "", "parse", path)
		require.NoError(t, err)
		assert.Contains(t, out, `"Abort"`)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		_, err := env.run(t, `{"action": "Null"}`, "parse", "-")
		assert.ErrorIs(t, err, schemas.ErrParse)
	})

	t.Run("fences only with the flag", func(t *testing.T) {
		fenced := "```json\n" + payload + "\n```"
		_, err := env.run(t, fenced, "parse")
		assert.ErrorIs(t, err, schemas.ErrParse)

		_, err = env.run(t, fenced, "parse", "--strip-fences")
		assert.NoError(t, err)
	})
}

func TestSwapAndLookupCmd(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "swap", "--old", "alice", "--new", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, `swapped credentials of "alice" and "bob"`)

	assert.Equal(t, &schemas.Credential{UserID: 2, Username: "alice", PasswordHash: "h2"}, env.lookup(t, "alice"))
	assert.Equal(t, &schemas.Credential{UserID: 1, Username: "bob", PasswordHash: "h1"}, env.lookup(t, "bob"))

	out, err = env.run(t, "", "lookup", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, `"user_id":2`)
	assert.NotContains(t, out, "h2", "password hash must be redacted")

	_, err = env.run(t, "", "swap", "--old", "alice", "--new", "ghost")
	assert.ErrorIs(t, err, agent.ErrNotFound)

	_, err = env.run(t, "", "swap", "--old", "alice")
	assert.Error(t, err)

	_, err = env.run(t, "", "lookup", "ghost")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestRespondCmd_Raw(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	transfer := filepath.Join(dir, "transfer.json")
	require.NoError(t, os.WriteFile(transfer, []byte(`{"action": {"TransferPlus": {"old_username": "alice", "new_username": "bob"}}, "text": "Moved it!"}`), 0o600))
	abort := filepath.Join(dir, "abort.json")
	require.NoError(t, os.WriteFile(abort, []byte(`{"action": "Abort", "text": "should not be sent"}`), 0o600))

	out, err := env.run(t, "", "respond", "--raw", transfer)
	require.NoError(t, err)
	assert.Equal(t, "Moved it!\n", out)
	assert.Equal(t, int64(2), env.lookup(t, "alice").UserID)

	out, err = env.run(t, "", "respond", "--raw", abort)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRespondCmd_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "respond")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "a message is required")

	_, err = env.run(t, "", "respond", "hello")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize LLM client")
}

// fakeLLM answers every request with a fixed payload.
type fakeLLM struct {
	payload string
	got     []schemas.GenerationRequest
}

func (f *fakeLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	f.got = append(f.got, req)
	return f.payload, nil
}

func (f *fakeLLM) Close() error { return nil }

func TestRespondCmd_WithProducer(t *testing.T) {
	env := newTestEnv(t)
	llm := &fakeLLM{payload: `{"action": "Null", "text": "Hi! How can I help?"}`}

	factory := func(ctx context.Context, cfg config.Interface, logger *zap.Logger, withLLM bool) (*service.Components, error) {
		require.True(t, withLLM)
		exec := agent.NewExecutor(nil, cfg.Executor(), logger)
		return &service.Components{
			Executor:  exec,
			LLM:       llm,
			Responder: service.NewResponder(llm, exec, cfg.Agent(), logger),
		}, nil
	}

	out, err := env.runWith(t, newRootCommand(factory), "", "respond", "hello", "there")
	require.NoError(t, err)
	assert.Equal(t, "Hi! How can I help?\n", out)
	require.Len(t, llm.got, 1)
	assert.Equal(t, "hello there", llm.got[0].UserPrompt)
}
