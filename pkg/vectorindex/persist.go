// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package vectorindex

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/kraklabs/codegraph/pkg/cgerrors"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// Pair is one (id, vector) entry, the unit Dump/persistence operate on.
type Pair struct {
	ID     entity.ID
	Vector []float32
}

// Dumper is implemented by every Index that can enumerate its live
// contents for persistence.
type Dumper interface {
	Dump() []Pair
}

// Meta is the sidecar JSON written alongside the vector files as
// vectors/meta.json.
type Meta struct {
	Kind       string `json:"kind"`
	Dimensions int    `json:"dimensions"`
	Count      int    `json:"count"`
}

const (
	indexFileName = "index.bin"
	idsFileName   = "ids.bin"
	metaFileName  = "meta.json"
)

// Save persists idx's live contents to dir as vectors/{index.bin,ids.bin,
// meta.json}: ids.bin is a flat sequence of 16-byte ids, index.bin the
// matching sequence of little-endian float32 vectors, meta.json the
// kind/dimensions/count sidecar.
func Save(dir string, kind string, idx Dumper) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: mkdir %s: %w", dir, err))
	}

	pairs := idx.Dump()
	dims := 0
	if len(pairs) > 0 {
		dims = len(pairs[0].Vector)
	}

	idsBuf := make([]byte, 0, len(pairs)*16)
	vecBuf := make([]byte, 0, len(pairs)*dims*4)
	for _, p := range pairs {
		idsBuf = append(idsBuf, p.ID[:]...)
		for _, f := range p.Vector {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
			vecBuf = append(vecBuf, b[:]...)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, idsFileName), idsBuf, 0o644); err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: write ids.bin: %w", err))
	}
	if err := os.WriteFile(filepath.Join(dir, indexFileName), vecBuf, 0o644); err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: write index.bin: %w", err))
	}

	meta := Meta{Kind: kind, Dimensions: dims, Count: len(pairs)}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: marshal meta.json: %w", err))
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), metaJSON, 0o644); err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: write meta.json: %w", err))
	}
	return nil
}

// LoadMeta reads vectors/meta.json from dir, or returns a zero Meta if it
// does not exist yet (a fresh project with no persisted index).
func LoadMeta(dir string) (Meta, error) {
	raw, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if os.IsNotExist(err) {
		return Meta{}, nil
	}
	if err != nil {
		return Meta{}, cgerrors.IOError(fmt.Errorf("vectorindex: read meta.json: %w", err))
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		return Meta{}, cgerrors.VectorIndexCorruption(fmt.Errorf("vectorindex: parse meta.json: %w", err))
	}
	return m, nil
}

// Load reads vectors/{ids.bin,index.bin} from dir and replays every
// (id, vector) pair into idx via Add, rebuilding the in-memory index from
// its durable snapshot at daemon start.
func Load(dir string, idx Index) error {
	meta, err := LoadMeta(dir)
	if err != nil {
		return err
	}
	if meta.Count == 0 {
		return nil
	}

	idsBuf, err := os.ReadFile(filepath.Join(dir, idsFileName))
	if err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: read ids.bin: %w", err))
	}
	vecBuf, err := os.ReadFile(filepath.Join(dir, indexFileName))
	if err != nil {
		return cgerrors.IOError(fmt.Errorf("vectorindex: read index.bin: %w", err))
	}

	wantIDsLen := meta.Count * 16
	wantVecLen := meta.Count * meta.Dimensions * 4
	if len(idsBuf) != wantIDsLen || len(vecBuf) != wantVecLen {
		return cgerrors.VectorIndexCorruption(fmt.Errorf(
			"vectorindex: size mismatch against meta.json (ids=%d want=%d, vecs=%d want=%d)",
			len(idsBuf), wantIDsLen, len(vecBuf), wantVecLen))
	}

	for i := 0; i < meta.Count; i++ {
		var id entity.ID
		copy(id[:], idsBuf[i*16:(i+1)*16])

		vec := make([]float32, meta.Dimensions)
		base := i * meta.Dimensions * 4
		for j := 0; j < meta.Dimensions; j++ {
			off := base + j*4
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(vecBuf[off : off+4]))
		}
		if err := idx.Add(id, vec); err != nil {
			return err
		}
	}
	return nil
}
