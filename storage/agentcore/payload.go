// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package agentcore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore/types"

	"github.com/openclaw/openclaw-storage/pydict"
)

// Blob document shapes. Every event the backend writes carries exactly one
// blob payload with a _type discriminator.
const (
	blobTypeKV        = "kv"
	blobTypeLine      = "line"
	blobTypeTombstone = "tombstone"
)

func kvPayload(value any) types.PayloadType {
	return &types.PayloadTypeMemberBlob{Value: document.NewLazyDocument(map[string]any{
		"_type": blobTypeKV,
		"value": value,
	})}
}

func linePayload(line string) types.PayloadType {
	return &types.PayloadTypeMemberBlob{Value: document.NewLazyDocument(map[string]any{
		"_type": blobTypeLine,
		"text":  line,
	})}
}

func tombstonePayload(now time.Time) types.PayloadType {
	return &types.PayloadTypeMemberBlob{Value: document.NewLazyDocument(map[string]any{
		"_type":     blobTypeTombstone,
		"deletedAt": now.UTC().Format(time.RFC3339Nano),
	})}
}

// conversationalPayload maps a transcript line that parses as a chat
// message to the service's native conversational shape, which feeds the
// long-term memory extraction pipelines. Returns nil when the line is not a
// recognizable message; the blob payload alone still round-trips the line.
func conversationalPayload(line string) types.PayloadType {
	var doc map[string]any
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return nil
	}

	// Either the envelope form {type:"message", message:{role, content}} or
	// a bare {role, content} message.
	msg := doc
	if t, _ := doc["type"].(string); t == "message" {
		inner, ok := doc["message"].(map[string]any)
		if !ok {
			return nil
		}
		msg = inner
	}

	role, ok := msg["role"].(string)
	if !ok {
		return nil
	}
	var asRole types.Role
	switch strings.ToLower(role) {
	case "user":
		asRole = types.RoleUser
	case "assistant":
		asRole = types.RoleAssistant
	default:
		return nil
	}

	text := contentText(msg["content"])
	if text == "" {
		return nil
	}

	return &types.PayloadTypeMemberConversational{Value: types.Conversational{
		Role:    asRole,
		Content: &types.ContentMemberText{Value: text},
	}}
}

// contentText flattens a message content field to plain text. Content is
// either a string or a list of {text} blocks.
func contentText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, block := range c {
			m, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok && text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

// eventRecord is one decoded event.
type eventRecord struct {
	blobType string
	value    any    // kv value
	line     string // line text
}

// decodeEvent recovers the record from an event's blob payload.
// Conversational payloads are advisory duplicates and are skipped; the blob
// is authoritative. ok=false means the event carries no blob.
func decodeEvent(event types.Event) (eventRecord, bool) {
	for _, payload := range event.Payload {
		blob, isBlob := payload.(*types.PayloadTypeMemberBlob)
		if !isBlob || blob.Value == nil {
			continue
		}

		var raw any
		if err := blob.Value.UnmarshalSmithyDocument(&raw); err != nil {
			continue
		}
		return decodeBlobValue(raw), true
	}
	return eventRecord{}, false
}

// decodeBlobValue classifies a decoded blob. Documents arrive either as the
// map the backend wrote or, through the API's reshaping quirk, as a
// Python-dict-like string that the pydict ladder recovers.
func decodeBlobValue(raw any) eventRecord {
	switch v := raw.(type) {
	case map[string]any:
		blobType, _ := v["_type"].(string)
		switch blobType {
		case blobTypeKV:
			return eventRecord{blobType: blobTypeKV, value: v["value"]}
		case blobTypeTombstone:
			return eventRecord{blobType: blobTypeTombstone}
		case blobTypeLine:
			if text, ok := v["text"].(string); ok {
				return eventRecord{blobType: blobTypeLine, line: text}
			}
			// text field reshaped to a non-string; re-encode so the line
			// is not lost.
			if data, err := json.Marshal(v["text"]); err == nil {
				return eventRecord{blobType: blobTypeLine, line: string(data)}
			}
		}
		// Unknown document shape; surface it as its JSON form.
		if data, err := json.Marshal(v); err == nil {
			return eventRecord{blobType: blobTypeLine, line: string(data)}
		}
		return eventRecord{blobType: blobTypeLine}
	case string:
		resolved := pydict.ResolveLine(v)
		// A kv or tombstone document that came back as text resolves to
		// its JSON form; reclassify it so Get still sees the value.
		var doc map[string]any
		if err := json.Unmarshal([]byte(resolved), &doc); err == nil {
			if t, _ := doc["_type"].(string); t == blobTypeKV || t == blobTypeTombstone {
				return decodeBlobValue(doc)
			}
		}
		return eventRecord{blobType: blobTypeLine, line: resolved}
	}
	if data, err := json.Marshal(raw); err == nil {
		return eventRecord{blobType: blobTypeLine, line: string(data)}
	}
	return eventRecord{blobType: blobTypeLine}
}
