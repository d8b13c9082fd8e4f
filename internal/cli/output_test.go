package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/storysync/internal/app"
	"github.com/roach88/storysync/internal/story"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(map[string]string{"result": "success"}, "ignored in json mode\n")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.NotContains(t, buf.String(), "ignored")
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"n": 1}, "Fetched 1 story.\n"))
	assert.Equal(t, "Fetched 1 story.\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("OFFLINE", "sync failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OFFLINE", resp.Error.Code)
	assert.Equal(t, "sync failed", resp.Error.Message)
}

func TestOutputFormatter_TextErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("REMOTE_REJECTED", "login failed", "status 401"))
	assert.Equal(t, "Error [REMOTE_REJECTED]: login failed\nDetails: status 401\n", buf.String())
}

func TestOutputFormatter_NoticeUsesErrWriter(t *testing.T) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: stdout, ErrWriter: stderr}

	formatter.Notice("%d offline stories synced!", 2)
	assert.Empty(t, stdout.String())
	assert.Equal(t, "2 offline stories synced!\n", stderr.String())
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	buf := &bytes.Buffer{}
	quiet := &OutputFormatter{Format: "text", Writer: buf}
	quiet.VerboseLog("hidden")
	assert.Empty(t, buf.String())

	loud := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}
	loud.VerboseLog("shown %d", 1)
	assert.Equal(t, "shown 1\n", buf.String())
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("sync: %w", app.ErrOffline), ErrCodeOffline},
		{fmt.Errorf("%w: description is required", story.ErrInvalidSubmission), ErrCodeInvalid},
		{story.RemoteRejected("login", 401, "Invalid password"), "REMOTE_REJECTED"},
		{story.NetworkUnreachable("list stories", errors.New("dial tcp")), "NETWORK_UNREACHABLE"},
		{story.StorageUnavailable("open", errors.New("disk")), "STORAGE_UNAVAILABLE"},
		{errors.New("something else"), ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitCommandError, "inner", errors.New("cause")))
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestCommandFailed(t *testing.T) {
	invalid := commandFailed("submit failed", fmt.Errorf("%w: x", story.ErrInvalidSubmission))
	assert.Equal(t, ExitCommandError, invalid.Code)

	remote := commandFailed("submit failed", story.RemoteRejected("create story", 500, "boom"))
	assert.Equal(t, ExitFailure, remote.Code)
	assert.Contains(t, remote.Error(), "submit failed: create story: REMOTE_REJECTED")
}
