// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package entity

import "time"

// FileMetadata records what the change pipeline last knew about an
// indexed file: used to detect no-op re-indexing and to prune nodes
// belonging to deleted files.
type FileMetadata struct {
	Path        string    `json:"path"`
	LastIndexed time.Time `json:"last_indexed"`
	ContentHash string    `json:"content_hash"`
	NodeCount   int       `json:"node_count"`
	Language    Language  `json:"language"`
	NodeIDs     []ID      `json:"node_ids"`
	IndexFailed bool      `json:"index_failed"`
}
