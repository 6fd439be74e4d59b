// Package s3reader implements the lazyload.SerializedDataReader plugin
// contract backed by S3: one object per item under a configurable prefix,
// plus a sentinel object recording initialization.
//
// Grounded on dorklyorg-dorkly's s3RelayArchiveService (internal/dorkly/
// relay_archive_service.go) for the "fetch from S3, decode JSON" pattern:
// aws-sdk-go-v2 client injection, GetObject/PutObject, and NoSuchKey
// error-type checking adapted to a not-found-as-nil-error contract.
package s3reader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/flagkit/core/internal/fmodel"
	"github.com/flagkit/core/internal/lazyload"
)

const initializedKey = "_initialized"

// Reader reads flag/segment data out of S3, one object per item, under
// "<prefix>/flags/<key>" and "<prefix>/segments/<key>".
type Reader struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewReader(client *s3.Client, bucket, prefix string) *Reader {
	return &Reader{client: client, bucket: bucket, prefix: prefix}
}

type wireItem struct {
	Version        int    `json:"version"`
	Deleted        bool   `json:"deleted"`
	SerializedItem string `json:"serializedItem,omitempty"`
}

func (r *Reader) objectKey(kind fmodel.DataKind, key string) string {
	return fmt.Sprintf("%s/%s/%s", r.prefix, kind.String(), key)
}

// Get fetches a single object. A NoSuchKey error is reported as "not
// found" via a nil item and nil error, matching the plugin contract.
func (r *Reader) Get(ctx context.Context, kind fmodel.DataKind, key string) (*lazyload.SerializedItem, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(kind, key)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}
	item, err := decodeWireItem(body)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// All lists and fetches every object under the kind's prefix. S3 has no
// native hash-scan equivalent, so this issues a ListObjectsV2 then one
// GetObject per key; hosts with large rulesets should prefer redisreader
// or a streaming/polling data system instead.
func (r *Reader) All(ctx context.Context, kind fmodel.DataKind) (map[string]lazyload.SerializedItem, error) {
	listPrefix := fmt.Sprintf("%s/%s/", r.prefix, kind.String())
	out := make(map[string]lazyload.SerializedItem)

	var continuationToken *string
	for {
		page, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(listPrefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			key := (*obj.Key)[len(listPrefix):]
			if key == initializedKey {
				continue
			}
			getOut, err := r.client.GetObject(ctx, &s3.GetObjectInput{
				Bucket: aws.String(r.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, err
			}
			body, err := io.ReadAll(getOut.Body)
			getOut.Body.Close()
			if err != nil {
				return nil, err
			}
			item, err := decodeWireItem(body)
			if err != nil {
				return nil, fmt.Errorf("s3reader: decoding %q: %w", key, err)
			}
			out[key] = item
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		continuationToken = page.NextContinuationToken
	}
	return out, nil
}

// Initialized reports whether the sentinel object exists under the flags
// prefix.
func (r *Reader) Initialized(ctx context.Context) (bool, error) {
	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(fmt.Sprintf("%s/%s/%s", r.prefix, fmodel.Flags.String(), initializedKey)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *Reader) Identity() string {
	return fmt.Sprintf("s3reader(bucket=%s, prefix=%s)", r.bucket, r.prefix)
}

// Put writes a single item, for hosts that populate S3 directly rather
// than through a background-sync destination.
func (r *Reader) Put(ctx context.Context, kind fmodel.DataKind, key string, item lazyload.SerializedItem) error {
	raw, err := json.Marshal(wireItem{Version: item.Version, Deleted: item.Deleted, SerializedItem: item.SerializedItem})
	if err != nil {
		return err
	}
	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.objectKey(kind, key)),
		Body:   bytes.NewReader(raw),
	})
	return err
}

func decodeWireItem(body []byte) (lazyload.SerializedItem, error) {
	var w wireItem
	if err := json.Unmarshal(body, &w); err != nil {
		return lazyload.SerializedItem{}, err
	}
	return lazyload.SerializedItem{
		Version:        w.Version,
		Deleted:        w.Deleted,
		SerializedItem: w.SerializedItem,
		HasItem:        !w.Deleted && w.SerializedItem != "",
	}, nil
}
