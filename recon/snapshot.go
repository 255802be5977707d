package recon

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zstd"
	"github.com/reconsync/reconsync/transport"
)

// legacyMagic is the 9-byte prefix identifying the old zlib-wrapped-JSON
// snapshot format (spec.md §9 backward compatibility note).
var legacyMagic = []byte("zipjson\x00\x00")

// SnapshotStore implements C2: persists compressed prior listings per side,
// tolerant of absence. New writes are zstd-compressed JSON; see SPEC_FULL.md
// §5 item 4 for why zstd replaces the spec's literal "xz" (no xz library
// exists anywhere in the grounding corpus). Legacy zlib-wrapped reads are
// still supported byte-for-byte.
type SnapshotStore struct {
	backend    transport.Backend
	workdir    string
	name       string
	resetState bool
}

// NewSnapshotStore builds a store rooted at workdir for one side.
func NewSnapshotStore(backend transport.Backend, workdir, name string, resetState bool) *SnapshotStore {
	return &SnapshotStore{backend: backend, workdir: workdir, name: name, resetState: resetState}
}

func (s *SnapshotStore) path(side string) string {
	return path.Join(s.workdir, fmt.Sprintf("%s-%s_fl.json.zst", side, s.name))
}

func (s *SnapshotStore) legacyPath(side string) string {
	return path.Join(s.workdir, fmt.Sprintf("%s-%s_fl.json.xz", side, s.name))
}

// Load implements load(side) -> Listing | empty. A resetState store (or a
// first run with no persisted object) returns an empty Listing rather than
// an error, per spec.md §4.2 and §3's SyncState first-run semantics.
func (s *SnapshotStore) Load(ctx context.Context, side string) (*Listing, error) {
	if s.resetState {
		return emptyListing(), nil
	}

	records, err := s.loadFrom(ctx, s.path(side), false)
	if err == nil {
		return NewListing(records), nil
	}
	if !isNotFound(err) {
		return nil, newError(KindTransportError, s.path(side), err)
	}

	// Fall back to the legacy on-disk name/format, still tolerating absence.
	records, err = s.loadFrom(ctx, s.legacyPath(side), true)
	if err != nil {
		if isNotFound(err) {
			return emptyListing(), nil
		}
		return nil, newError(KindTransportError, s.legacyPath(side), err)
	}
	return NewListing(records), nil
}

func (s *SnapshotStore) loadFrom(ctx context.Context, p string, legacy bool) ([]FileRecord, error) {
	r, err := s.backend.NewReader(ctx, p)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var jsonBytes []byte
	if legacy || bytes.HasPrefix(raw, legacyMagic) {
		jsonBytes, err = decodeLegacy(raw)
	} else {
		jsonBytes, err = decodeZstd(raw)
	}
	if err != nil {
		return nil, err
	}

	var records []FileRecord
	if err := json.Unmarshal(jsonBytes, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeLegacy(raw []byte) ([]byte, error) {
	body := bytes.TrimPrefix(raw, legacyMagic)
	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer func() { _ = zr.Close() }()
	return io.ReadAll(zr)
}

func decodeZstd(raw []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return io.ReadAll(dec)
}

// Save persists listing as the new prior state for side. Best-effort atomic
// at the remote: writes to a temp object, then moves it to the target name
// (server-side Move when the backend has one, else copy then delete).
func (s *SnapshotStore) Save(ctx context.Context, side string, listing *Listing) error {
	jsonBytes, err := json.Marshal(listing.Records())
	if err != nil {
		return newError(KindTransportError, "", err)
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return newError(KindTransportError, "", err)
	}
	if _, err := enc.Write(jsonBytes); err != nil {
		_ = enc.Close()
		return newError(KindTransportError, "", err)
	}
	if err := enc.Close(); err != nil {
		return newError(KindTransportError, "", err)
	}

	target := s.path(side)
	tmp := target + ".tmp"

	w, err := s.backend.NewWriter(ctx, tmp)
	if err != nil {
		return newError(KindTransportError, tmp, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		_ = w.Close()
		return newError(KindTransportError, tmp, err)
	}
	if err := w.Close(); err != nil {
		return newError(KindTransportError, tmp, err)
	}

	if ext, ok := transport.AsExtended(s.backend); ok && ext.Features().Move {
		if err := ext.Move(ctx, tmp, target); err != nil {
			return newError(KindTransportError, target, err)
		}
		return nil
	}

	// Fall back to copy+delete when server-side move isn't available.
	if err := copyOne(ctx, s.backend, s.backend, tmp, target, nil); err != nil {
		return newError(KindTransportError, target, err)
	}
	return s.backend.Delete(ctx, tmp)
}
