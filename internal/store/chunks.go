package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// ChunkKind is the media type of a recorded chunk.
type ChunkKind string

const (
	ChunkVideo ChunkKind = "video"
	ChunkAudio ChunkKind = "audio"
)

// Chunk is one recorded frame or audio fragment.
type Chunk struct {
	ID          int64     `json:"id"`
	RecordingID string    `json:"recording_id"`
	Kind        ChunkKind `json:"kind"`
	Payload     []byte    `json:"-"`
	Timestamp   time.Time `json:"timestamp"`
}

// StoreChunk persists one payload byte-for-byte and returns its id.
func (s *Store) StoreChunk(ctx context.Context, recordingID string, payload []byte, kind ChunkKind, ts time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO recording_chunks (recording_id, kind, payload, ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, recordingID, string(kind), payload, ts).Scan(&id)
	return id, err
}

// GetChunks returns a recording's chunks ordered by timestamp, then by
// insertion for equal timestamps. A nil kind returns every kind.
func (s *Store) GetChunks(ctx context.Context, recordingID string, kind *ChunkKind) ([]Chunk, error) {
	var kindFilter *string
	if kind != nil {
		k := string(*kind)
		kindFilter = &k
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, recording_id, kind, payload, ts
		FROM recording_chunks
		WHERE recording_id = $1 AND ($2::text IS NULL OR kind = $2)
		ORDER BY ts ASC, id ASC
	`, recordingID, kindFilter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var k string
		if err := rows.Scan(&c.ID, &c.RecordingID, &k, &c.Payload, &c.Timestamp); err != nil {
			return nil, err
		}
		c.Kind = ChunkKind(k)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DecodeChunkPayload decodes a base64 media payload as sent by browsers,
// with or without a "data:<mime>;base64," prefix.
func DecodeChunkPayload(encoded string) ([]byte, error) {
	if strings.HasPrefix(encoded, "data:") {
		i := strings.IndexByte(encoded, ',')
		if i < 0 {
			return nil, fmt.Errorf("data url without payload")
		}
		encoded = encoded[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode base64 payload: %w", err)
	}
	return b, nil
}
