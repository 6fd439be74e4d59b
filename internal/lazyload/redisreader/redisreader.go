// Package redisreader implements the lazyload.SerializedDataReader plugin
// contract backed by Redis, storing each data kind as a hash keyed by item
// key and a well-known hash field recording initialization.
//
// Grounded on the redis.Client idiom in
// Sidd-007-feature-flag-platform's config_cache.go (client injection,
// context-scoped calls, redis.Nil handling).
package redisreader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/lazyload"
)

// wireItem is the JSON shape stored in each Redis hash field.
type wireItem struct {
	Version        int    `json:"version"`
	Deleted        bool   `json:"deleted"`
	SerializedItem string `json:"serializedItem,omitempty"`
}

func decodeItem(raw string) (lazyload.SerializedItem, error) {
	var w wireItem
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return lazyload.SerializedItem{}, err
	}
	return lazyload.SerializedItem{
		Version:        w.Version,
		Deleted:        w.Deleted,
		SerializedItem: w.SerializedItem,
		HasItem:        !w.Deleted && w.SerializedItem != "",
	}, nil
}

func encodeItem(item lazyload.SerializedItem) (string, error) {
	w := wireItem{Version: item.Version, Deleted: item.Deleted, SerializedItem: item.SerializedItem}
	raw, err := json.Marshal(w)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

const initializedField = "$initialized"

// Reader reads flag/segment data out of Redis hashes under a configurable
// key prefix.
type Reader struct {
	client *redis.Client
	prefix string
}

func NewReader(client *redis.Client, prefix string) *Reader {
	return &Reader{client: client, prefix: prefix}
}

func (r *Reader) hashKey(kind fmodel.DataKind) string {
	return fmt.Sprintf("%s:%s", r.prefix, kind.String())
}

// Get fetches a single serialized item. A missing field is reported as "not
// found" via a nil item and nil error.
func (r *Reader) Get(ctx context.Context, kind fmodel.DataKind, key string) (*lazyload.SerializedItem, error) {
	raw, err := r.client.HGet(ctx, r.hashKey(kind), key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item, err := decodeItem(raw)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// All fetches every field in the kind's hash.
func (r *Reader) All(ctx context.Context, kind fmodel.DataKind) (map[string]lazyload.SerializedItem, error) {
	raws, err := r.client.HGetAll(ctx, r.hashKey(kind)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]lazyload.SerializedItem, len(raws))
	for key, raw := range raws {
		if key == initializedField {
			continue
		}
		item, err := decodeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("redisreader: decoding %q: %w", key, err)
		}
		out[key] = item
	}
	return out, nil
}

// Initialized reports whether the data set has ever been fully populated,
// signalled by a sentinel field present in the flags hash.
func (r *Reader) Initialized(ctx context.Context) (bool, error) {
	exists, err := r.client.HExists(ctx, r.hashKey(fmodel.Flags), initializedField).Result()
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (r *Reader) Identity() string {
	return fmt.Sprintf("redisreader(prefix=%s)", r.prefix)
}

// MarkInitialized sets the sentinel field, used by the writer side of this
// plugin (not exercised by the core evaluation path, but required so a host
// populating Redis directly can flip Initialized() to true).
func (r *Reader) MarkInitialized(ctx context.Context) error {
	return r.client.HSet(ctx, r.hashKey(fmodel.Flags), initializedField, "1").Err()
}

// Put writes a single item, for hosts that populate Redis directly rather
// than through a background-sync destination.
func (r *Reader) Put(ctx context.Context, kind fmodel.DataKind, key string, item lazyload.SerializedItem) error {
	raw, err := encodeItem(item)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.hashKey(kind), key, raw).Err()
}
