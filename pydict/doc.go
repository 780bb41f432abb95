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


// Package pydict recovers JSON payloads from the Python-dict-like text the
// event memory API sometimes returns in place of JSON.
//
// Blob payloads written as JSON documents occasionally come back reshaped,
// for example:
//
//	{_type=line, text={"type":"message","content":"hi"}}
//	{_type=line, data={role=assistant, turns=3}}
//
// ResolveLine applies a decode ladder to such strings: strict JSON first,
// then the text= wrapper, then a data= wrapper converted through ToJSON,
// and finally a raw passthrough so no input is ever lost.
//
// All functions are pure and never panic on malformed input. A tempting
// shortcut, replacing every single quote with a double quote, corrupts
// apostrophes inside string values; ExtractTextField uses a precise match
// instead.
package pydict
