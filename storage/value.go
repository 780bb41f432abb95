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


package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeValue serializes a value to indented JSON, the on-disk document form
// of the file backend.
func EncodeValue(value any) ([]byte, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode value: %v", ErrInvalidArgument, err)
	}
	return append(data, '\n'), nil
}

// DecodeValue deserializes a JSON document produced by EncodeValue.
func DecodeValue(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("%w: decode value: %v", ErrCorruption, err)
	}
	return value, nil
}

// CloneValue returns a deep copy of a JSON-compatible value. Backends clone
// on both cache read and cache write so callers can never alias cached
// state. Cloning goes through JSON, which also normalizes numeric types.
func CloneValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: clone value: %v", ErrInvalidArgument, err)
	}
	var clone any
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("%w: clone value: %v", ErrInvalidArgument, err)
	}
	return clone, nil
}

// CanonicalJSON serializes a value to compact JSON. Used where a string
// form is required, for example secret payloads that are not already
// strings.
func CanonicalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: encode value: %v", ErrInvalidArgument, err)
	}
	return string(data), nil
}
