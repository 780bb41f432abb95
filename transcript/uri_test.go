package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/openclaw-storage/storage"
)

const testARN = "arn:aws:bedrock-agentcore:us-east-1:000000000000:memory/mem-1"

func TestParseURISplitsAtLastSlash(t *testing.T) {
	loc, err := ParseURI("agentcore://" + testARN + "/session-42")
	require.NoError(t, err)

	assert.Equal(t, testARN, loc.MemoryARN, "slashes inside the ARN stay on the left")
	assert.Equal(t, "session-42", loc.SessionID)
}

func TestParseURIRejectsMalformed(t *testing.T) {
	for _, uri := range []string{
		"file:///tmp/transcript.jsonl",
		"agentcore://",
		"agentcore://no-slash",
		"agentcore://" + testARN + "/",
		"agentcore:///session-only",
	} {
		_, err := ParseURI(uri)
		assert.ErrorIs(t, err, storage.ErrInvalidArgument, uri)
	}
}

func TestBuildParseRoundTrip(t *testing.T) {
	uri := BuildAgentCoreURI(testARN, "s1")
	assert.True(t, IsAgentCoreURI(uri))

	loc, err := ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, Location{MemoryARN: testARN, SessionID: "s1"}, loc)
}

func TestIsAgentCoreURI(t *testing.T) {
	assert.True(t, IsAgentCoreURI("agentcore://a/b"))
	assert.False(t, IsAgentCoreURI("/var/lib/openclaw/transcripts/a.jsonl"))
	assert.False(t, IsAgentCoreURI("s3://bucket/key"))
}
