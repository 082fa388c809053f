// Package backup exports the local record cache to blob storage and restores
// it without pushing anything to the remote service.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"arksync/internal/blob"
	"arksync/internal/records"
)

// Prefix is the key prefix every backup is written under.
const Prefix = "backups/"

// FormatVersion is bumped when Document changes incompatibly.
const FormatVersion = 1

const timestampLayout = "20060102T150405Z"

// ErrUnsupportedVersion is returned when a backup was written by a newer format.
var ErrUnsupportedVersion = errors.New("unsupported backup format version")

// Source is the local state being backed up.
type Source interface {
	Snapshot() records.Dump
	Restore(records.Dump) error
}

// Document is the JSON body of one backup object.
type Document struct {
	Version   int          `json:"version"`
	CreatedAt time.Time    `json:"createdAt"`
	Records   records.Dump `json:"records"`
}

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// Key returns the object key for a backup taken at t.
func Key(t time.Time, id uuid.UUID) string {
	return Prefix + t.UTC().Format(timestampLayout) + "-" + id.String() + ".json"
}

// Export writes a full snapshot of src and returns the stored object.
func Export(ctx context.Context, src Source, store blob.Store) (blob.Info, error) {
	ts := now()
	doc := Document{Version: FormatVersion, CreatedAt: ts, Records: src.Snapshot()}
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return blob.Info{}, fmt.Errorf("encode backup: %w", err)
	}
	info, err := store.Put(ctx, Key(ts, uuid.New()), bytes.NewReader(body), blob.PutOptions{
		ContentType: "application/json",
		Metadata:    map[string]string{"format-version": fmt.Sprint(FormatVersion)},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("store backup: %w", err)
	}
	return info, nil
}

// List returns the stored backups, newest first.
func List(ctx context.Context, store blob.Store) ([]blob.Info, error) {
	infos, err := store.List(ctx, Prefix)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	out := infos[:0]
	for _, info := range infos {
		if strings.HasSuffix(info.Key, ".json") {
			out = append(out, info)
		}
	}
	// Keys start with a sortable timestamp.
	sort.Slice(out, func(i, j int) bool { return out[i].Key > out[j].Key })
	return out, nil
}

// Load reads and decodes the backup stored under key.
func Load(ctx context.Context, store blob.Store, key string) (Document, error) {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	var doc Document
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode backup %s: %w", key, err)
	}
	if doc.Version > FormatVersion {
		return Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, doc.Version)
	}
	return doc, nil
}

// Restore loads the backup under key into dst. Nothing is pushed.
// An empty key selects the newest backup.
func Restore(ctx context.Context, dst Source, store blob.Store, key string) (Document, error) {
	if key == "" {
		infos, err := List(ctx, store)
		if err != nil {
			return Document{}, err
		}
		if len(infos) == 0 {
			return Document{}, fmt.Errorf("restore: %w: no backups", blob.ErrNotFound)
		}
		key = infos[0].Key
	}
	doc, err := Load(ctx, store, key)
	if err != nil {
		return Document{}, err
	}
	if err := dst.Restore(doc.Records); err != nil {
		return Document{}, err
	}
	return doc, nil
}
