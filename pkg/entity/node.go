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

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ID is the 128-bit deterministic identifier of a Node or Edge. It is
// formatted as a UUID-shaped string purely for readability; its bits carry
// no UUID version/variant semantics, only the SHA-256 digest bytes of the
// identity tuple.
type ID = uuid.UUID

// Node represents one code entity: a function, struct, module, class,
// import, variable, and so on.
type Node struct {
	ID         ID                `json:"id"`
	Name       string            `json:"name"`
	NodeType   *NodeType         `json:"node_type,omitempty"`
	Language   *Language         `json:"language,omitempty"`
	Location   Location          `json:"location"`
	Span       *Span             `json:"span,omitempty"`
	Content    string            `json:"content,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	Embedding  []float32         `json:"embedding,omitempty"`
	Complexity *float32          `json:"complexity,omitempty"`
}

// DeriveNodeID computes the deterministic id every node carries:
// id = H(project_id, file_path, name, node_type_tag, line). It is total,
// pure, and collision-resistant: the same five inputs always produce the
// same id, which is what makes re-parsing an unchanged entity idempotent.
func DeriveNodeID(projectID, filePath, name string, nodeType NodeType, line uint32) ID {
	normalized := normalizePath(filePath)
	nt := string(nodeType)
	if nt == "" {
		nt = "unknown"
	}
	key := fmt.Sprintf("%s|%s|%s|%s|%d", projectID, normalized, name, nt, line)
	sum := sha256.Sum256([]byte(key))
	var id ID
	copy(id[:], sum[:16])
	return id
}

// ParseID parses the UUID-shaped string form of an ID back into an ID,
// as used when decoding key suffixes out of the graph store's name index.
func ParseID(s string) (ID, error) {
	return uuid.Parse(s)
}

// normalizePath puts a path into the canonical form node ids are derived
// from: forward slashes, no leading "./", cross-platform stable.
func normalizePath(path string) string {
	if len(path) >= 2 && path[0:2] == "./" {
		path = path[2:]
	}
	path = filepath.Clean(path)
	path = filepath.ToSlash(path)
	if len(path) > 0 && path[0] == '/' {
		path = path[1:]
	}
	return path
}

// NewNode constructs a Node with a deterministic id and the created/updated
// timestamps set to now.
func NewNode(projectID, name string, nodeType *NodeType, language *Language, loc Location) *Node {
	now := time.Now().UTC()
	var tag NodeType
	if nodeType != nil {
		tag = *nodeType
	}
	return &Node{
		ID:        DeriveNodeID(projectID, loc.FilePath, name, tag, loc.Line),
		Name:      name,
		NodeType:  nodeType,
		Language:  language,
		Location:  loc,
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithContent attaches the entity's source text.
func (n *Node) WithContent(content string) *Node {
	n.Content = content
	return n
}

// WithEmbedding attaches an embedding vector.
func (n *Node) WithEmbedding(embedding []float32) *Node {
	n.Embedding = embedding
	return n
}

// WithComplexity attaches a complexity score.
func (n *Node) WithComplexity(score float32) *Node {
	n.Complexity = &score
	return n
}

// Validate checks the Node invariants that are local to the node itself
// (dimension checks against the active index's D live in pkg/vectorindex,
// not here).
func (n *Node) Validate() error {
	if err := n.Location.Validate(); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	return nil
}

// ContentHash returns a short content-addressed hash of the node's body,
// used to detect the "same id, different content" merge case on re-parse,
// and as part of the embedding cache key (node_id, model_id, content_hash).
func (n *Node) ContentHash() string {
	sum := sha256.Sum256([]byte(n.Content))
	return fmt.Sprintf("%x", sum[:8])
}
