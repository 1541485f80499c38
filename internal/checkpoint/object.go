// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrDisabled is returned when the object store has no endpoint configured.
var ErrDisabled = fmt.Errorf("checkpoint object store not configured")

// ObjectConfig holds S3-compatible connection settings.
type ObjectConfig struct {
	Endpoint        string // e.g. "localhost:9000"
	Bucket          string
	Prefix          string // defaults to "checkpoints/"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Retain          int
}

// ObjectStore keeps snapshots as objects in one bucket.
type ObjectStore struct {
	mc     *minio.Client
	bucket string
	prefix string
	retain int
}

// NewObjectStore connects to the endpoint and creates the bucket if needed.
func NewObjectStore(ctx context.Context, cfg ObjectConfig) (*ObjectStore, error) {
	if cfg.Endpoint == "" {
		return nil, ErrDisabled
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	s := &ObjectStore{mc: mc, bucket: cfg.Bucket, prefix: cfg.Prefix, retain: cfg.Retain}
	if s.prefix == "" {
		s.prefix = "checkpoints/"
	}
	if s.retain < 1 {
		s.retain = 1
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func objectKey(prefix string, seq int64) string { return fmt.Sprintf("%s%010d.json", prefix, seq) }

func (s *ObjectStore) Save(ctx context.Context, snap Snapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.mc.PutObject(ctx, s.bucket, objectKey(s.prefix, snap.Sequence), bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return err
	}
	return s.prune(ctx)
}

// keys returns snapshot object keys, oldest first.
func (s *ObjectStore) keys(ctx context.Context) ([]string, error) {
	// the listing goroutine only exits once the channel is drained or ctx ends
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []string
	for obj := range s.mc.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, ".json") {
			keys = append(keys, obj.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *ObjectStore) prune(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	for len(keys) > s.retain {
		if err := s.mc.RemoveObject(ctx, s.bucket, keys[0], minio.RemoveObjectOptions{}); err != nil {
			return err
		}
		keys = keys[1:]
	}
	return nil
}

func (s *ObjectStore) Latest(ctx context.Context) (Snapshot, bool, error) {
	var snap Snapshot
	keys, err := s.keys(ctx)
	if err != nil || len(keys) == 0 {
		return snap, false, err
	}
	obj, err := s.mc.GetObject(ctx, s.bucket, keys[len(keys)-1], minio.GetObjectOptions{})
	if err != nil {
		return snap, false, err
	}
	defer obj.Close()
	if err := json.NewDecoder(obj).Decode(&snap); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}
