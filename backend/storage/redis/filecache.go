// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/efchatnet/efshare/backend/models"
)

const (
	// File records are immutable, so the TTL only bounds cache memory,
	// never correctness.
	fileRecordTTL = 6 * time.Hour

	fileKeyPrefix = "file:" // file:{uniqueId} - serialized StoredFile
)

// FileCache is a read-through cache of file records keyed by unique id.
// A miss or a cache failure is never an error for the caller; the Postgres
// store stays authoritative.
type FileCache struct {
	rdb *redis.Client
}

func NewFileCache(rdb *redis.Client) *FileCache {
	return &FileCache{rdb: rdb}
}

// Get returns the cached record for uniqueID, or (nil, nil) on a miss.
func (c *FileCache) Get(ctx context.Context, uniqueID string) (*models.StoredFile, error) {
	data, err := c.rdb.Get(ctx, fileKeyPrefix+uniqueID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file record: %w", err)
	}

	var f models.StoredFile
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		// Malformed entry, drop it and treat as a miss
		c.rdb.Del(ctx, fileKeyPrefix+uniqueID)
		return nil, nil
	}
	return &f, nil
}

func (c *FileCache) Set(ctx context.Context, f *models.StoredFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal file record: %w", err)
	}
	if err := c.rdb.Set(ctx, fileKeyPrefix+f.UniqueID, data, fileRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache file record: %w", err)
	}
	return nil
}
