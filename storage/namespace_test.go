package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNamespace(t *testing.T) {
	for _, ns := range Namespaces() {
		parsed, err := ParseNamespace(string(ns))
		require.NoError(t, err)
		assert.Equal(t, ns, parsed)
	}

	_, err := ParseNamespace("bogus")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNamespacesClosedSet(t *testing.T) {
	assert.Equal(t, []Namespace{NamespaceSessions, NamespaceTranscripts, NamespaceAuth, NamespaceConfig}, Namespaces())
}

func TestParseClassification(t *testing.T) {
	for _, c := range []string{"local", "cloud"} {
		parsed, err := ParseClassification(c)
		require.NoError(t, err)
		assert.Equal(t, Classification(c), parsed)
	}

	_, err := ParseClassification("regional")
	require.ErrorIs(t, err, ErrInvalidArgument)
}
