// Copyright 2025 Poiesic Systems
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
	"fmt"
	"time"

	"github.com/DhruvTemura/second-brain-ai/core"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// Records are encoded field by field with MUS serializers, in declaration order.
// Timestamps are stored as Unix microseconds behind a zero flag so that
// an unset time survives a round trip.

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalSource serializes a Source to bytes.
func MarshalSource(s *core.Source) []byte {
	size := varint.Uint64.Size(uint64(s.Id)) +
		ord.String.Size(s.UserID) +
		ord.String.Size(string(s.Type)) +
		ord.String.Size(s.Title) +
		ord.String.Size(s.Location) +
		ord.String.Size(s.MimeType) +
		ord.String.Size(s.Content) +
		timeSize(s.Timestamp) +
		timeSize(s.CreatedAt)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(s.Id), buf)
	n += ord.String.Marshal(s.UserID, buf[n:])
	n += ord.String.Marshal(string(s.Type), buf[n:])
	n += ord.String.Marshal(s.Title, buf[n:])
	n += ord.String.Marshal(s.Location, buf[n:])
	n += ord.String.Marshal(s.MimeType, buf[n:])
	n += ord.String.Marshal(s.Content, buf[n:])
	n += marshalTime(s.Timestamp, buf[n:])
	marshalTime(s.CreatedAt, buf[n:])
	return buf
}

// UnmarshalSource deserializes a Source from bytes.
func UnmarshalSource(data []byte) (*core.Source, error) {
	r := reader{data: data}
	s := &core.Source{}
	s.Id = core.ID(r.readUint64())
	s.UserID = r.readString()
	s.Type = core.SourceType(r.readString())
	s.Title = r.readString()
	s.Location = r.readString()
	s.MimeType = r.readString()
	s.Content = r.readString()
	s.Timestamp = r.readTime()
	s.CreatedAt = r.readTime()
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(j *core.Job) []byte {
	size := varint.Uint64.Size(uint64(j.Id)) +
		ord.String.Size(j.UserID) +
		varint.Uint64.Size(uint64(j.SourceID)) +
		ord.String.Size(string(j.Status)) +
		ord.String.Size(j.Error) +
		timeSize(j.CreatedAt) +
		timeSize(j.UpdatedAt)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(j.Id), buf)
	n += ord.String.Marshal(j.UserID, buf[n:])
	n += varint.Uint64.Marshal(uint64(j.SourceID), buf[n:])
	n += ord.String.Marshal(string(j.Status), buf[n:])
	n += ord.String.Marshal(j.Error, buf[n:])
	n += marshalTime(j.CreatedAt, buf[n:])
	marshalTime(j.UpdatedAt, buf[n:])
	return buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	r := reader{data: data}
	j := &core.Job{}
	j.Id = core.ID(r.readUint64())
	j.UserID = r.readString()
	j.SourceID = core.ID(r.readUint64())
	j.Status = core.JobStatus(r.readString())
	j.Error = r.readString()
	j.CreatedAt = r.readTime()
	j.UpdatedAt = r.readTime()
	if r.err != nil {
		return nil, r.err
	}
	return j, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(c *core.Chunk) []byte {
	size := varint.Uint64.Size(uint64(c.Id)) +
		varint.Uint64.Size(uint64(c.SourceID)) +
		ord.String.Size(c.UserID) +
		varint.Int.Size(c.Index) +
		ord.String.Size(c.Text) +
		vectorSize(c.Vector) +
		timeSize(c.Timestamp) +
		timeSize(c.CreatedAt)

	buf := make([]byte, size)
	n := varint.Uint64.Marshal(uint64(c.Id), buf)
	n += varint.Uint64.Marshal(uint64(c.SourceID), buf[n:])
	n += ord.String.Marshal(c.UserID, buf[n:])
	n += varint.Int.Marshal(c.Index, buf[n:])
	n += ord.String.Marshal(c.Text, buf[n:])
	n += marshalVector(c.Vector, buf[n:])
	n += marshalTime(c.Timestamp, buf[n:])
	marshalTime(c.CreatedAt, buf[n:])
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	r := reader{data: data}
	c := &core.Chunk{}
	c.Id = core.ID(r.readUint64())
	c.SourceID = core.ID(r.readUint64())
	c.UserID = r.readString()
	c.Index = r.readInt()
	c.Text = r.readString()
	c.Vector = r.readVector()
	c.Timestamp = r.readTime()
	c.CreatedAt = r.readTime()
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func timeSize(t time.Time) int {
	if t.IsZero() {
		return ord.Bool.Size(false)
	}
	return ord.Bool.Size(true) + varint.Int64.Size(t.UnixMicro())
}

func marshalTime(t time.Time, bs []byte) int {
	if t.IsZero() {
		return ord.Bool.Marshal(false, bs)
	}
	n := ord.Bool.Marshal(true, bs)
	return n + varint.Int64.Marshal(t.UnixMicro(), bs[n:])
}

func vectorSize(v []float32) int {
	size := varint.Int.Size(len(v))
	for _, f := range v {
		size += raw.Float32.Size(f)
	}
	return size
}

func marshalVector(v []float32, bs []byte) int {
	n := varint.Int.Marshal(len(v), bs)
	for _, f := range v {
		n += raw.Float32.Marshal(f, bs[n:])
	}
	return n
}

// reader decodes fields sequentially and remembers the first failure,
// so call sites stay flat.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: offset %d: %w", ErrSerializationFailed, r.pos, err)
	}
}

func (r *reader) readUint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) readInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return 0
	}
	r.pos += n
	return v
}

func (r *reader) readString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return ""
	}
	r.pos += n
	return v
}

func (r *reader) readTime() time.Time {
	if r.err != nil {
		return time.Time{}
	}
	set, n, err := ord.Bool.Unmarshal(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return time.Time{}
	}
	r.pos += n
	if !set {
		return time.Time{}
	}
	micros, n, err := varint.Int64.Unmarshal(r.data[r.pos:])
	if err != nil {
		r.fail(err)
		return time.Time{}
	}
	r.pos += n
	return time.UnixMicro(micros).UTC()
}

func (r *reader) readVector() []float32 {
	length := r.readInt()
	if r.err != nil {
		return nil
	}
	if length < 0 || length > len(r.data)-r.pos {
		r.fail(ErrTruncatedData)
		return nil
	}
	if length == 0 {
		return nil
	}
	v := make([]float32, length)
	for i := range v {
		f, n, err := raw.Float32.Unmarshal(r.data[r.pos:])
		if err != nil {
			r.fail(err)
			return nil
		}
		v[i] = f
		r.pos += n
	}
	return v
}
