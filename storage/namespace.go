package storage

import "fmt"

// Namespace identifies one of the four logical keyspaces.
type Namespace string

const (
	// NamespaceSessions holds session index documents.
	NamespaceSessions Namespace = "sessions"
	// NamespaceTranscripts holds append-only conversation logs.
	NamespaceTranscripts Namespace = "transcripts"
	// NamespaceAuth holds credentials and tokens.
	NamespaceAuth Namespace = "auth"
	// NamespaceConfig holds runtime configuration documents.
	NamespaceConfig Namespace = "config"
)

// Namespaces returns the closed set of namespaces in a stable order.
func Namespaces() []Namespace {
	return []Namespace{NamespaceSessions, NamespaceTranscripts, NamespaceAuth, NamespaceConfig}
}

// ParseNamespace validates s against the closed namespace set.
func ParseNamespace(s string) (Namespace, error) {
	switch Namespace(s) {
	case NamespaceSessions, NamespaceTranscripts, NamespaceAuth, NamespaceConfig:
		return Namespace(s), nil
	}
	return "", fmt.Errorf("%w: unknown namespace %q", ErrInvalidArgument, s)
}

// Classification decides where a namespace's data lives.
type Classification string

const (
	// ClassificationLocal keeps data on the local filesystem.
	ClassificationLocal Classification = "local"
	// ClassificationCloud routes data to a managed cloud backend.
	ClassificationCloud Classification = "cloud"
)

// ParseClassification validates s as a data classification.
func ParseClassification(s string) (Classification, error) {
	switch Classification(s) {
	case ClassificationLocal, ClassificationCloud:
		return Classification(s), nil
	}
	return "", fmt.Errorf("%w: unknown data classification %q", ErrInvalidArgument, s)
}
