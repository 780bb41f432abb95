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


package transcript

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	openclaw "github.com/openclaw/openclaw-storage"
	"github.com/openclaw/openclaw-storage/pydict"
	"github.com/openclaw/openclaw-storage/storage"
)

// Message is one chat message recovered from a transcript line. The shape
// is whatever the writer stored under the line's "message" field.
type Message map[string]any

// ReadMessages loads the chat messages behind source, which is either a
// local transcript file path or an agentcore:// URI. Missing files and
// unknown sessions yield an empty slice, not an error. Messages come back
// in chronological order with embedded Python-dict content repaired.
func ReadMessages(ctx context.Context, source string, cfg openclaw.Config) ([]Message, error) {
	if IsAgentCoreURI(source) {
		return readFromEventMemory(ctx, source, cfg)
	}
	return readFromFile(source)
}

func readFromFile(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var messages []Message
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if msg, ok := messageFromLine(line); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// readFromEventMemory reads the transcript through a private service so the
// process-wide singleton's configuration and lifecycle are untouched. The
// URI's memory ARN overrides the configured one; the rest of the agentcore
// settings carry over.
func readFromEventMemory(ctx context.Context, uri string, cfg openclaw.Config) ([]Message, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	ac := openclaw.AgentCoreConfig{MemoryARN: loc.MemoryARN}
	if cfg.AgentCore != nil {
		ac.Region = cfg.AgentCore.Region
		ac.NamespacePrefix = cfg.AgentCore.NamespacePrefix
	}
	cfg.AgentCore = &ac
	if cfg.Type == openclaw.ModeFile {
		cfg.Type = openclaw.ModeAgentCore
	}

	// The URI names an event-memory transcript, so routing must not fall
	// back to the file backend whatever the config's overrides say.
	dc := openclaw.ClassificationConfig{}
	if cfg.DataClassification != nil {
		dc = *cfg.DataClassification
	}
	dc.Transcripts = storage.ClassificationCloud
	cfg.DataClassification = &dc

	service, err := openclaw.NewService(cfg, nil)
	if err != nil {
		return nil, err
	}
	defer service.Close()

	backend, err := service.GetBackend(ctx, storage.NamespaceTranscripts)
	if err != nil {
		return nil, err
	}

	// ReadLines already yields oldest-first, so the messages are
	// chronological as collected.
	var messages []Message
	for line, err := range backend.ReadLines(ctx, storage.NamespaceTranscripts, loc.SessionID) {
		if err != nil {
			return nil, err
		}
		if msg, ok := messageFromLine(line); ok {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// messageFromLine parses one transcript line and extracts its message, when
// the line is JSON and carries one.
func messageFromLine(line string) (Message, bool) {
	if strings.TrimSpace(line) == "" {
		return nil, false
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return nil, false
	}
	msg, ok := record["message"].(map[string]any)
	if !ok {
		return nil, false
	}
	sanitizeContent(msg)
	return Message(msg), true
}

// sanitizeContent repairs content blocks whose text is a stringified Python
// dict left behind by older writers, replacing the block's text with the
// embedded 'text' field.
func sanitizeContent(msg map[string]any) {
	content, ok := msg["content"].([]any)
	if !ok {
		return
	}
	for _, item := range content {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, ok := block["text"].(string)
		if !ok {
			continue
		}
		if !strings.HasPrefix(text, "{") || !strings.Contains(text, "'text'") {
			continue
		}
		if inner, ok := pydict.ExtractTextField(text); ok {
			block["text"] = inner
		}
	}
}
