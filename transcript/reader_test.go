package transcript

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openclaw "github.com/openclaw/openclaw-storage"
)

func writeTranscript(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestReadMessagesMissingFileIsEmpty(t *testing.T) {
	messages, err := ReadMessages(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"), openclaw.DefaultConfig())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestReadMessagesFromFile(t *testing.T) {
	path := writeTranscript(t, `{"type":"message","message":{"role":"user","content":[{"type":"text","text":"hello"}]}}`+"\r\n"+
		"\n"+
		"not json at all\n"+
		`{"type":"meta","sessionId":"s1"}`+"\n"+
		`{"type":"message","message":{"role":"assistant","content":[{"type":"text","text":"hi there"}]}}`+"\n")

	messages, err := ReadMessages(context.Background(), path, openclaw.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, messages, 2, "blank, malformed, and message-less lines are skipped")

	assert.Equal(t, "user", messages[0]["role"])
	assert.Equal(t, "assistant", messages[1]["role"])
}

func TestReadMessagesRepairsPythonDictText(t *testing.T) {
	path := writeTranscript(t, `{"message":{"role":"assistant","content":[{"type":"text","text":"{'type': 'text', 'text': 'recovered reply'}"}]}}`+"\n")

	messages, err := ReadMessages(context.Background(), path, openclaw.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, messages, 1)

	content := messages[0]["content"].([]any)
	block := content[0].(map[string]any)
	assert.Equal(t, "recovered reply", block["text"])
}

func TestReadMessagesLeavesPlainTextAlone(t *testing.T) {
	path := writeTranscript(t, `{"message":{"role":"user","content":[{"type":"text","text":"braces {here} but no dict"},{"type":"image","source":"s3://x"}]}}`+"\n")

	messages, err := ReadMessages(context.Background(), path, openclaw.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, messages, 1)

	content := messages[0]["content"].([]any)
	assert.Equal(t, "braces {here} but no dict", content[0].(map[string]any)["text"])
	assert.NotContains(t, content[1].(map[string]any), "text")
}

func TestReadMessagesBadURI(t *testing.T) {
	_, err := ReadMessages(context.Background(), "agentcore://no-slash", openclaw.DefaultConfig())
	require.Error(t, err)
}
