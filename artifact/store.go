package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/finresearch/agentflow/contract"
	"github.com/finresearch/agentflow/storage"
)

// ErrArtifactNotFound is returned when an artifact id has no corresponding
// envelope in the store.
var ErrArtifactNotFound = errors.New("artifact: not found")

// ErrArtifactConflict is returned when Save is called with an artifact id
// that already exists but whose stored content differs from the new
// content — the store never silently overwrites.
var ErrArtifactConflict = errors.New("artifact: conflict")

// ErrKindMismatch is returned when Load's expectedKind does not match the
// kind recorded on the stored envelope.
var ErrKindMismatch = errors.New("artifact: kind mismatch")

const blobKeyPrefix = "artifact:"

// Store persists ArtifactEnvelopes keyed by a deterministic, content-
// addressed id, backed by a storage.BlobStore. Writes are idempotent: saving
// identical content twice returns the same id without error; saving
// different content under a colliding id is ErrArtifactConflict.
type Store struct {
	blobs    storage.BlobStore
	registry *contract.Registry
}

// NewStore wires a Store on top of blobs, validating payloads with
// registry before every save.
func NewStore(blobs storage.BlobStore, registry *contract.Registry) *Store {
	return &Store{blobs: blobs, registry: registry}
}

// ComputeArtifactID hashes {kind, version, canonical_data_bytes, thread_id}
// with sha256. Ids are content-addressed: the same logical artifact
// produced twice (e.g. by a re-run fan-out/join) always gets the same id.
func ComputeArtifactID(kind, version, threadID string, data map[string]any) (string, error) {
	canonical, err := canonicalJSON(data)
	if err != nil {
		return "", fmt.Errorf("artifact: canonicalize data: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(version))
	h.Write([]byte{0})
	h.Write(canonical)
	h.Write([]byte{0})
	h.Write([]byte(threadID))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Save validates data against the (kind, version) schema, computes the
// content-addressed artifact id, and writes the envelope exactly once.
// Re-saving identical content returns the existing id; re-saving different
// content under the same id is ErrArtifactConflict.
func (s *Store) Save(ctx context.Context, kind, version, producedBy, threadID string, data map[string]any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("artifact: marshal input data: %w", err)
	}
	typed, err := s.registry.Parse(kind, version, raw)
	if err != nil {
		return Envelope{}, err
	}
	validated, err := s.registry.Serialize(kind, version, typed)
	if err != nil {
		return Envelope{}, err
	}

	id, err := ComputeArtifactID(kind, version, threadID, validated)
	if err != nil {
		return Envelope{}, err
	}

	env := Envelope{
		ArtifactID: id,
		Kind:       kind,
		Version:    version,
		ProducedBy: producedBy,
		ThreadID:   threadID,
		CreatedAt:  time.Now(),
		Data:       validated,
	}

	envRaw, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("artifact: marshal envelope: %w", err)
	}

	key := blobKeyPrefix + id
	if err := s.blobs.PutIfAbsent(ctx, key, envRaw); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			existing, loadErr := s.loadRaw(ctx, id)
			if loadErr != nil {
				return Envelope{}, loadErr
			}
			if !sameContent(existing.Data, validated) {
				return Envelope{}, fmt.Errorf("%w: artifact id %s", ErrArtifactConflict, id)
			}
			return existing, nil
		}
		return Envelope{}, fmt.Errorf("artifact: save %s: %w", id, err)
	}

	return env, nil
}

// LoadAny retrieves the envelope for artifactID without a kind check, for
// callers (the Control API's generic artifact-fetch endpoint) that don't
// know the kind ahead of time and let the client discriminate on it.
func (s *Store) LoadAny(ctx context.Context, artifactID string) (Envelope, error) {
	return s.loadRaw(ctx, artifactID)
}

// Load retrieves the envelope for artifactID and checks it matches
// expectedKind.
func (s *Store) Load(ctx context.Context, artifactID, expectedKind string) (Envelope, error) {
	env, err := s.loadRaw(ctx, artifactID)
	if err != nil {
		return Envelope{}, err
	}
	if env.Kind != expectedKind {
		return Envelope{}, fmt.Errorf("%w: got %s, expected %s", ErrKindMismatch, env.Kind, expectedKind)
	}
	return env, nil
}

// LoadJSON retrieves the canonical JSON data payload for artifactID,
// checked against expectedKind. It always returns a plain map, never a
// typed record, so cross-agent consumers cannot accidentally mix typed and
// untyped flows at the boundary.
func (s *Store) LoadJSON(ctx context.Context, artifactID, expectedKind string) (map[string]any, error) {
	env, err := s.Load(ctx, artifactID, expectedKind)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (s *Store) loadRaw(ctx context.Context, artifactID string) (Envelope, error) {
	raw, err := s.blobs.Get(ctx, blobKeyPrefix+artifactID)
	if errors.Is(err, storage.ErrNotFound) {
		return Envelope{}, fmt.Errorf("%w: %s", ErrArtifactNotFound, artifactID)
	}
	if err != nil {
		return Envelope{}, fmt.Errorf("artifact: load %s: %w", artifactID, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("artifact: decode %s: %w", artifactID, err)
	}
	return env, nil
}

func sameContent(a, b map[string]any) bool {
	ca, err1 := canonicalJSON(a)
	cb, err2 := canonicalJSON(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(ca) == string(cb)
}
