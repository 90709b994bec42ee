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

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/maintel/core"
)

// Binary layout of an ExtractionRecord, in field order:
// fingerprint, failure (equipment id/type, mode, severity, summary, actions),
// source text, vector, created/expires/inserted timestamps. Timestamps are
// UnixMicro int64s with 0 standing in for the zero time (ExpiresAt may be
// unset); vector elements are raw IEEE-754 float32s behind a varint length.

// MarshalExtractionRecord serializes an ExtractionRecord to bytes.
func MarshalExtractionRecord(record *core.ExtractionRecord) []byte {
	buf := make([]byte, sizeExtractionRecord(record))
	n := ord.String.Marshal(string(record.Fingerprint), buf)
	n += marshalFailure(&record.Failure, buf[n:])
	n += ord.String.Marshal(record.SourceText, buf[n:])
	n += marshalVector(record.Vector, buf[n:])
	n += marshalTime(record.CreatedAt, buf[n:])
	n += marshalTime(record.ExpiresAt, buf[n:])
	marshalTime(record.InsertedAt, buf[n:])
	return buf
}

// UnmarshalExtractionRecord deserializes an ExtractionRecord from bytes.
func UnmarshalExtractionRecord(data []byte) (*core.ExtractionRecord, error) {
	record := &core.ExtractionRecord{}

	fp, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: fingerprint: %w", ErrSerializationFailed, err)
	}
	record.Fingerprint = core.Fingerprint(fp)
	offset := n

	n, err = unmarshalFailure(&record.Failure, data[offset:])
	if err != nil {
		return nil, err
	}
	offset += n

	record.SourceText, n, err = ord.String.Unmarshal(data[offset:])
	if err != nil {
		return nil, fmt.Errorf("%w: source text: %w", ErrSerializationFailed, err)
	}
	offset += n

	record.Vector, n, err = unmarshalVector(data[offset:])
	if err != nil {
		return nil, err
	}
	offset += n

	record.CreatedAt, n, err = unmarshalTime(data[offset:])
	if err != nil {
		return nil, err
	}
	offset += n

	record.ExpiresAt, n, err = unmarshalTime(data[offset:])
	if err != nil {
		return nil, err
	}
	offset += n

	record.InsertedAt, _, err = unmarshalTime(data[offset:])
	if err != nil {
		return nil, err
	}

	return record, nil
}

func sizeExtractionRecord(record *core.ExtractionRecord) int {
	size := ord.String.Size(string(record.Fingerprint))
	size += sizeFailure(&record.Failure)
	size += ord.String.Size(record.SourceText)
	size += sizeVector(record.Vector)
	size += sizeTime(record.CreatedAt)
	size += sizeTime(record.ExpiresAt)
	size += sizeTime(record.InsertedAt)
	return size
}

func marshalFailure(failure *core.Failure, buf []byte) int {
	n := ord.String.Marshal(failure.EquipmentID, buf)
	n += ord.String.Marshal(failure.EquipmentType, buf[n:])
	n += ord.String.Marshal(failure.FailureMode, buf[n:])
	n += varint.Int.Marshal(failure.Severity, buf[n:])
	n += ord.String.Marshal(failure.Summary, buf[n:])
	n += varint.PositiveInt.Marshal(len(failure.Actions), buf[n:])
	for _, action := range failure.Actions {
		n += ord.String.Marshal(action, buf[n:])
	}
	return n
}

func unmarshalFailure(failure *core.Failure, data []byte) (int, error) {
	var (
		offset int
		n      int
		err    error
	)

	if failure.EquipmentID, n, err = ord.String.Unmarshal(data); err != nil {
		return 0, fmt.Errorf("%w: equipment id: %w", ErrSerializationFailed, err)
	}
	offset += n
	if failure.EquipmentType, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return 0, fmt.Errorf("%w: equipment type: %w", ErrSerializationFailed, err)
	}
	offset += n
	if failure.FailureMode, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return 0, fmt.Errorf("%w: failure mode: %w", ErrSerializationFailed, err)
	}
	offset += n
	if failure.Severity, n, err = varint.Int.Unmarshal(data[offset:]); err != nil {
		return 0, fmt.Errorf("%w: severity: %w", ErrSerializationFailed, err)
	}
	offset += n
	if failure.Summary, n, err = ord.String.Unmarshal(data[offset:]); err != nil {
		return 0, fmt.Errorf("%w: summary: %w", ErrSerializationFailed, err)
	}
	offset += n

	count, n, err := varint.PositiveInt.Unmarshal(data[offset:])
	if err != nil {
		return 0, fmt.Errorf("%w: action count: %w", ErrSerializationFailed, err)
	}
	offset += n
	if count > 0 {
		failure.Actions = make([]string, count)
		for i := 0; i < count; i++ {
			if failure.Actions[i], n, err = ord.String.Unmarshal(data[offset:]); err != nil {
				return 0, fmt.Errorf("%w: action %d: %w", ErrSerializationFailed, i, err)
			}
			offset += n
		}
	}

	return offset, nil
}

func sizeFailure(failure *core.Failure) int {
	size := ord.String.Size(failure.EquipmentID)
	size += ord.String.Size(failure.EquipmentType)
	size += ord.String.Size(failure.FailureMode)
	size += varint.Int.Size(failure.Severity)
	size += ord.String.Size(failure.Summary)
	size += varint.PositiveInt.Size(len(failure.Actions))
	for _, action := range failure.Actions {
		size += ord.String.Size(action)
	}
	return size
}

func marshalVector(vector []float32, buf []byte) int {
	n := varint.PositiveInt.Marshal(len(vector), buf)
	for _, v := range vector {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	return n
}

func unmarshalVector(data []byte) ([]float32, int, error) {
	count, offset, err := varint.PositiveInt.Unmarshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: vector length: %w", ErrSerializationFailed, err)
	}
	if count == 0 {
		return nil, offset, nil
	}

	vector := make([]float32, count)
	for i := 0; i < count; i++ {
		var n int
		if vector[i], n, err = raw.Float32.Unmarshal(data[offset:]); err != nil {
			return nil, 0, fmt.Errorf("%w: vector element %d: %w", ErrSerializationFailed, i, err)
		}
		offset += n
	}
	return vector, offset, nil
}

func sizeVector(vector []float32) int {
	size := varint.PositiveInt.Size(len(vector))
	if len(vector) > 0 {
		size += len(vector) * raw.Float32.Size(vector[0])
	}
	return size
}

func marshalTime(t time.Time, buf []byte) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Marshal(micros, buf)
}

func unmarshalTime(data []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(data)
	if err != nil {
		return time.Time{}, 0, fmt.Errorf("%w: timestamp: %w", ErrSerializationFailed, err)
	}
	if micros == 0 {
		return time.Time{}, n, nil
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	var micros int64
	if !t.IsZero() {
		micros = t.UnixMicro()
	}
	return varint.Int64.Size(micros)
}
