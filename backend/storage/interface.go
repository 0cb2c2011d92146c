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

package storage

import (
	"context"
	"errors"

	"github.com/efchatnet/efshare/backend/models"
)

// ErrNotFound is returned by reads when no matching record exists. It is a
// defined terminal outcome, not a failure.
var ErrNotFound = errors.New("record not found")

type SubscriberStore interface {
	// SaveSubscriber records a chat for a tenant. It is find-or-insert:
	// saving an already known (chat, tenant) pair is a no-op.
	SaveSubscriber(ctx context.Context, sub models.Subscriber) error

	// ListSubscribers returns every subscriber record for a tenant.
	ListSubscribers(ctx context.Context, botUsername string) ([]models.Subscriber, error)
}

type FileStore interface {
	// InsertFile stores a file record. Inserting an id that already exists
	// is a no-op, never an overwrite.
	InsertFile(ctx context.Context, f models.StoredFile) error

	// GetFile returns the record for uniqueID, or ErrNotFound.
	GetFile(ctx context.Context, uniqueID string) (*models.StoredFile, error)
}

type Store interface {
	SubscriberStore
	FileStore
}
