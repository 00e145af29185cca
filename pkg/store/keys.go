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

// Package store implements the graph store: a durable log-structured
// key-value layer (Badger) fronted by a hot in-process node cache and a
// lock-free adjacency map, following the same Backend/EmbeddedBackend
// shape a pluggable storage layer would, but fixed to Badger's key scheme
// and binary encoding rather than a Datalog engine.
package store

import (
	"fmt"

	"github.com/kraklabs/codegraph/pkg/entity"
)

// Key prefixes for each record kind stored in Badger.
const (
	prefixNode    = "node:"
	prefixNameIdx = "name_idx:"
	prefixFile    = "file_meta:"
	prefixEdge    = "edge:"
)

func nodeKey(id entity.ID) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixNode, id.String()))
}

func nameIdxKey(name string, id entity.ID) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixNameIdx, name, id.String()))
}

func nameIdxPrefix(name string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixNameIdx, name))
}

func fileMetaKey(path string) []byte {
	return []byte(prefixFile + path)
}

func edgeKey(from entity.ID, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d", prefixEdge, from.String(), seq))
}

func edgePrefix(from entity.ID) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixEdge, from.String()))
}
