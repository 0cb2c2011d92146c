// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package bot

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
	rediscache "github.com/efchatnet/efshare/backend/storage/redis"
)

// FileRegistry allocates collision-safe unique ids and stores/retrieves
// file records. Ids are 128-bit random, string-encoded; the regenerate-on-
// collision loop is a correctness requirement even though a collision is
// statistically negligible.
type FileRegistry struct {
	store  storage.FileStore
	cache  *rediscache.FileCache // optional
	logger hclog.Logger

	// newID is swapped out in tests to force collisions.
	newID func() string
}

func NewFileRegistry(store storage.FileStore, cache *rediscache.FileCache, logger hclog.Logger) *FileRegistry {
	return &FileRegistry{
		store:  store,
		cache:  cache,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
}

// Store records a content reference under a freshly allocated unique id and
// returns the id. An id that turns out to be occupied is regenerated before
// the insert, never overwritten.
func (r *FileRegistry) Store(ctx context.Context, fileID string, kind models.FileKind) (string, error) {
	uniqueID := r.newID()
	for {
		_, err := r.store.GetFile(ctx, uniqueID)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return "", err
		}
		r.logger.Warn("unique id collision, regenerating", "unique_id", uniqueID)
		uniqueID = r.newID()
	}

	f := models.StoredFile{UniqueID: uniqueID, FileID: fileID, Kind: kind}
	if err := r.store.InsertFile(ctx, f); err != nil {
		return "", err
	}
	r.logger.Info("stored file", "unique_id", uniqueID, "kind", kind)

	if r.cache != nil {
		if err := r.cache.Set(ctx, &f); err != nil {
			r.logger.Warn("failed to cache file record", "unique_id", uniqueID, "error", err)
		}
	}
	return uniqueID, nil
}

// Lookup returns the record for uniqueID, or storage.ErrNotFound. Store
// read failures degrade to not-found so a flaky store never crashes the
// handling path.
func (r *FileRegistry) Lookup(ctx context.Context, uniqueID string) (*models.StoredFile, error) {
	if r.cache != nil {
		f, err := r.cache.Get(ctx, uniqueID)
		if err != nil {
			r.logger.Warn("file cache read failed", "unique_id", uniqueID, "error", err)
		} else if f != nil {
			return f, nil
		}
	}

	f, err := r.store.GetFile(ctx, uniqueID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		r.logger.Error("file lookup failed", "unique_id", uniqueID, "error", err)
		return nil, storage.ErrNotFound
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, f); err != nil {
			r.logger.Warn("failed to cache file record", "unique_id", uniqueID, "error", err)
		}
	}
	return f, nil
}
