// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/s2"
	"github.com/kraklabs/codegraph/pkg/entity"
)

// compressionThreshold is the string-length cutoff above which a field is
// s2-compressed before being written. s2 (klauspost/compress) is already
// part of the dependency graph Badger pulls in, so no new ecosystem
// surface is introduced by using it directly here.
const compressionThreshold = 256

// writer accumulates a length-prefixed binary record: <u32 len><bytes> per
// field, UTF-8 strings, single-byte presence flags for optional fields.
type writer struct {
	buf []byte
}

func (w *writer) putBytes(b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.buf = append(w.buf, lenBuf[:]...)
	w.buf = append(w.buf, b...)
}

func (w *writer) putString(s string) {
	w.putBytes([]byte(s))
}

// putCompressible writes a presence flag, a one-byte compression flag, and
// the (possibly compressed) payload.
func (w *writer) putCompressible(s string) {
	if s == "" {
		w.buf = append(w.buf, 0) // presence = absent
		return
	}
	w.buf = append(w.buf, 1) // presence = present
	if len(s) > compressionThreshold {
		w.buf = append(w.buf, 1) // compressed
		w.putBytes(s2.Encode(nil, []byte(s)))
	} else {
		w.buf = append(w.buf, 0) // raw
		w.putString(s)
	}
}

func (w *writer) putPresenceByte(present bool) {
	if present {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *writer) putUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) putUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *writer) putFloat64(v float64) {
	w.putUint64(math.Float64bits(v))
}

func (w *writer) putFloat32(v float32) {
	w.putUint32(math.Float32bits(v))
}

func (w *writer) putMetadata(m map[string]string) {
	w.putUint32(uint32(len(m)))
	for k, v := range m {
		w.putString(k)
		w.putString(v)
	}
}

// reader walks a buffer produced by writer, in the same field order.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader { return &reader{buf: buf} }

func (r *reader) err() error {
	if r.pos > len(r.buf) {
		return fmt.Errorf("store: decode past end of buffer")
	}
	return nil
}

func (r *reader) getBytes() ([]byte, error) {
	if r.pos+4 > len(r.buf) {
		return nil, fmt.Errorf("store: truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	if r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("store: truncated field body")
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) getString() (string, error) {
	b, err := r.getBytes()
	return string(b), err
}

func (r *reader) getPresenceByte() (bool, error) {
	if r.pos+1 > len(r.buf) {
		return false, fmt.Errorf("store: truncated presence byte")
	}
	v := r.buf[r.pos] == 1
	r.pos++
	return v, nil
}

func (r *reader) getCompressible() (string, error) {
	present, err := r.getPresenceByte()
	if err != nil || !present {
		return "", err
	}
	compressed, err := r.getPresenceByte()
	if err != nil {
		return "", err
	}
	raw, err := r.getBytes()
	if err != nil {
		return "", err
	}
	if !compressed {
		return string(raw), nil
	}
	decoded, err := s2.Decode(nil, raw)
	if err != nil {
		return "", fmt.Errorf("store: s2 decode: %w", err)
	}
	return string(decoded), nil
}

func (r *reader) getUint32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("store: truncated uint32")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) getUint64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("store: truncated uint64")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) getFloat64() (float64, error) {
	v, err := r.getUint64()
	return math.Float64frombits(v), err
}

func (r *reader) getFloat32() (float32, error) {
	v, err := r.getUint32()
	return math.Float32frombits(v), err
}

func (r *reader) getMetadata() (map[string]string, error) {
	n, err := r.getUint32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	m := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := r.getString()
		if err != nil {
			return nil, err
		}
		v, err := r.getString()
		if err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// EncodeNode serializes a Node to the length-prefixed binary record
// format.
func EncodeNode(n *entity.Node) []byte {
	w := &writer{}
	w.buf = append(w.buf, n.ID[:]...)
	w.putString(n.Name)

	w.putPresenceByte(n.NodeType != nil)
	if n.NodeType != nil {
		w.putString(string(*n.NodeType))
	}
	w.putPresenceByte(n.Language != nil)
	if n.Language != nil {
		w.putString(string(*n.Language))
	}

	w.putString(n.Location.FilePath)
	w.putUint32(n.Location.Line)
	w.putUint32(n.Location.Column)
	w.putPresenceByte(n.Location.EndLine != nil)
	if n.Location.EndLine != nil {
		w.putUint32(*n.Location.EndLine)
	}
	w.putPresenceByte(n.Location.EndColumn != nil)
	if n.Location.EndColumn != nil {
		w.putUint32(*n.Location.EndColumn)
	}

	w.putPresenceByte(n.Span != nil)
	if n.Span != nil {
		w.putUint32(n.Span.StartByte)
		w.putUint32(n.Span.EndByte)
	}

	w.putCompressible(n.Content)
	w.putMetadata(n.Metadata)

	w.putUint64(uint64(n.CreatedAt.UnixNano()))
	w.putUint64(uint64(n.UpdatedAt.UnixNano()))

	w.putPresenceByte(n.Embedding != nil)
	if n.Embedding != nil {
		w.putUint32(uint32(len(n.Embedding)))
		for _, f := range n.Embedding {
			w.putFloat32(f)
		}
	}

	w.putPresenceByte(n.Complexity != nil)
	if n.Complexity != nil {
		w.putFloat32(*n.Complexity)
	}

	return w.buf
}

// DecodeNode deserializes a Node previously produced by EncodeNode.
func DecodeNode(buf []byte) (*entity.Node, error) {
	if len(buf) < 16 {
		return nil, fmt.Errorf("store: node record too short")
	}
	n := &entity.Node{}
	copy(n.ID[:], buf[:16])
	r := newReader(buf[16:])

	var err error
	if n.Name, err = r.getString(); err != nil {
		return nil, err
	}

	present, err := r.getPresenceByte()
	if err != nil {
		return nil, err
	}
	if present {
		s, err := r.getString()
		if err != nil {
			return nil, err
		}
		nt := entity.NodeType(s)
		n.NodeType = &nt
	}

	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		s, err := r.getString()
		if err != nil {
			return nil, err
		}
		lang := entity.Language(s)
		n.Language = &lang
	}

	if n.Location.FilePath, err = r.getString(); err != nil {
		return nil, err
	}
	if n.Location.Line, err = r.getUint32(); err != nil {
		return nil, err
	}
	if n.Location.Column, err = r.getUint32(); err != nil {
		return nil, err
	}
	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		v, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		n.Location.EndLine = &v
	}
	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		v, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		n.Location.EndColumn = &v
	}

	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		sb, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		eb, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		n.Span = &entity.Span{StartByte: sb, EndByte: eb}
	}

	if n.Content, err = r.getCompressible(); err != nil {
		return nil, err
	}
	if n.Metadata, err = r.getMetadata(); err != nil {
		return nil, err
	}

	createdNano, err := r.getUint64()
	if err != nil {
		return nil, err
	}
	updatedNano, err := r.getUint64()
	if err != nil {
		return nil, err
	}
	n.CreatedAt = unixNano(createdNano)
	n.UpdatedAt = unixNano(updatedNano)

	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		count, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		embedding := make([]float32, count)
		for i := range embedding {
			if embedding[i], err = r.getFloat32(); err != nil {
				return nil, err
			}
		}
		n.Embedding = embedding
	}

	if present, err = r.getPresenceByte(); err != nil {
		return nil, err
	} else if present {
		v, err := r.getFloat32()
		if err != nil {
			return nil, err
		}
		n.Complexity = &v
	}

	return n, r.err()
}

// EncodeEdge serializes an Edge to the length-prefixed binary record
// format.
func EncodeEdge(e *entity.Edge) []byte {
	w := &writer{}
	w.buf = append(w.buf, e.From[:]...)

	w.putPresenceByte(e.To.Resolved())
	if e.To.Resolved() {
		w.buf = append(w.buf, e.To.ResolvedID[:]...)
	} else {
		w.putString(e.To.Symbol)
	}

	w.putString(string(e.EdgeType))
	w.putFloat64(e.Weight)
	w.putMetadata(e.Metadata)

	w.putPresenceByte(e.Span != nil)
	if e.Span != nil {
		w.putUint32(e.Span.StartByte)
		w.putUint32(e.Span.EndByte)
	}

	w.putUint64(e.Seq)

	return w.buf
}

// DecodeEdge deserializes an Edge previously produced by EncodeEdge.
func DecodeEdge(buf []byte) (*entity.Edge, error) {
	if len(buf) < 16 {
		return nil, fmt.Errorf("store: edge record too short")
	}
	e := &entity.Edge{}
	copy(e.From[:], buf[:16])
	r := newReader(buf[16:])

	resolved, err := r.getPresenceByte()
	if err != nil {
		return nil, err
	}
	if resolved {
		if r.pos+16 > len(r.buf) {
			return nil, fmt.Errorf("store: truncated edge target id")
		}
		var id entity.ID
		copy(id[:], r.buf[r.pos:r.pos+16])
		r.pos += 16
		e.To = entity.NodeTarget(id)
	} else {
		sym, err := r.getString()
		if err != nil {
			return nil, err
		}
		e.To = entity.SymbolTarget(sym)
	}

	etStr, err := r.getString()
	if err != nil {
		return nil, err
	}
	e.EdgeType = entity.EdgeType(etStr)

	if e.Weight, err = r.getFloat64(); err != nil {
		return nil, err
	}
	if e.Metadata, err = r.getMetadata(); err != nil {
		return nil, err
	}

	present, err := r.getPresenceByte()
	if err != nil {
		return nil, err
	}
	if present {
		sb, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		eb, err := r.getUint32()
		if err != nil {
			return nil, err
		}
		e.Span = &entity.Span{StartByte: sb, EndByte: eb}
	}

	if e.Seq, err = r.getUint64(); err != nil {
		return nil, err
	}

	return e, r.err()
}

// unixNano converts a stored UnixNano timestamp back to a time.Time in UTC.
func unixNano(nanos uint64) time.Time {
	return time.Unix(0, int64(nanos)).UTC()
}

// EncodeFileMeta serializes a FileMetadata record, stored under
// `file_meta:{path}`.
func EncodeFileMeta(m *entity.FileMetadata) []byte {
	w := &writer{}
	w.putString(m.Path)
	w.putUint64(uint64(m.LastIndexed.UnixNano()))
	w.putString(m.ContentHash)
	w.putUint32(uint32(m.NodeCount))
	w.putString(string(m.Language))
	w.putPresenceByte(m.IndexFailed)

	w.putUint32(uint32(len(m.NodeIDs)))
	for _, id := range m.NodeIDs {
		w.buf = append(w.buf, id[:]...)
	}
	return w.buf
}

// DecodeFileMeta deserializes a FileMetadata record previously produced by
// EncodeFileMeta.
func DecodeFileMeta(buf []byte) (*entity.FileMetadata, error) {
	r := newReader(buf)
	m := &entity.FileMetadata{}

	var err error
	if m.Path, err = r.getString(); err != nil {
		return nil, err
	}
	nanos, err := r.getUint64()
	if err != nil {
		return nil, err
	}
	m.LastIndexed = unixNano(nanos)
	if m.ContentHash, err = r.getString(); err != nil {
		return nil, err
	}
	count, err := r.getUint32()
	if err != nil {
		return nil, err
	}
	m.NodeCount = int(count)
	lang, err := r.getString()
	if err != nil {
		return nil, err
	}
	m.Language = entity.Language(lang)
	if m.IndexFailed, err = r.getPresenceByte(); err != nil {
		return nil, err
	}

	n, err := r.getUint32()
	if err != nil {
		return nil, err
	}
	m.NodeIDs = make([]entity.ID, n)
	for i := uint32(0); i < n; i++ {
		if r.pos+16 > len(r.buf) {
			return nil, fmt.Errorf("store: truncated file_meta node id")
		}
		copy(m.NodeIDs[i][:], r.buf[r.pos:r.pos+16])
		r.pos += 16
	}

	return m, r.err()
}
