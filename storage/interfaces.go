package storage

import (
	"context"
	"encoding/json"
	"iter"
	"time"
)

// Backend type tags, advertised through Backend.Type.
const (
	TypeFile           = "file"
	TypeAgentCore      = "agentcore"
	TypeDynamoDB       = "dynamodb"
	TypeSecretsManager = "secrets-manager"
)

// UpdateFunc transforms the current value of a key into its next value.
// found reports whether the key currently exists; current is nil when it
// does not. Returning keep=false deletes the key. Returning an error aborts
// the update without writing.
type UpdateFunc func(current any, found bool) (next any, keep bool, err error)

// HealthStatus is the result of a backend health probe.
type HealthStatus struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latencyMs"`
	Err     string        `json:"error,omitempty"`
}

// MarshalJSON encodes Latency as whole milliseconds under latencyMs.
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OK        bool   `json:"ok"`
		LatencyMs int64  `json:"latencyMs"`
		Err       string `json:"error,omitempty"`
	}{h.OK, h.Latency.Milliseconds(), h.Err})
}

// Backend provides namespaced key-value and append-log operations over a
// concrete store. Implementations must be safe for concurrent use.
type Backend interface {
	// Type returns the backend tag ("file", "agentcore", "dynamodb",
	// "secrets-manager").
	Type() string

	// Distributed reports whether the backend is shared across hosts.
	Distributed() bool

	// Initialize prepares the backend for use. It must be called before any
	// data operation and is idempotent.
	Initialize(ctx context.Context) error

	// Close releases all resources. The backend is unusable afterwards.
	Close() error

	// Get returns the latest value for the key, or found=false when the key
	// does not exist. Missing keys are never an error.
	Get(ctx context.Context, ns Namespace, key string) (value any, found bool, err error)

	// Set persists value under the key, overwriting any prior value.
	Set(ctx context.Context, ns Namespace, key string, value any) error

	// Delete removes the key. It reports whether a value existed and is
	// idempotent.
	Delete(ctx context.Context, ns Namespace, key string) (existed bool, err error)

	// List enumerates keys in the namespace whose sanitized form begins with
	// prefix. An empty prefix matches everything. Order is unspecified.
	List(ctx context.Context, ns Namespace, prefix string) ([]string, error)

	// Update performs an atomic read-modify-write of the key. Atomicity is
	// backend-specific: the file backend uses an inter-process file lock,
	// DynamoDB uses a conditional write, and the event-memory backend is
	// best-effort read-then-write. Returns the value written and whether the
	// key exists after the update.
	Update(ctx context.Context, ns Namespace, key string, fn UpdateFunc) (next any, kept bool, err error)

	// Append adds one record to a log-shaped key. line must not contain
	// embedded newlines; that is the caller's responsibility.
	Append(ctx context.Context, ns Namespace, key string, line string) error

	// ReadLines returns the appended records in chronological order. The
	// sequence is finite, restartable, and empty for a missing key. Errors
	// are yielded through the second element and terminate the sequence.
	ReadLines(ctx context.Context, ns Namespace, key string) iter.Seq2[string, error]

	// HealthCheck probes the backend. It is side-effect-free and bounded;
	// implementations cap the probe at a short internal deadline.
	HealthCheck(ctx context.Context) HealthStatus
}
