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

package postgres

import (
	"context"
	"database/sql"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
)

// Store is the per-tenant Postgres store. Every method is a single
// statement; no call spans a transaction across events.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) SaveSubscriber(ctx context.Context, sub models.Subscriber) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscribers (chat_id, bot_username, joined_at, subscribed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chat_id, bot_username) DO NOTHING`,
		sub.ChatID, sub.BotUsername, sub.JoinedAt, sub.Subscribed)
	return err
}

func (s *Store) ListSubscribers(ctx context.Context, botUsername string) ([]models.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chat_id, bot_username, joined_at, subscribed FROM subscribers
		WHERE bot_username = $1`, botUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.Subscriber
	for rows.Next() {
		var sub models.Subscriber
		if err := rows.Scan(&sub.ChatID, &sub.BotUsername, &sub.JoinedAt, &sub.Subscribed); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) InsertFile(ctx context.Context, f models.StoredFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stored_files (unique_id, file_id, kind)
		VALUES ($1, $2, $3)
		ON CONFLICT (unique_id) DO NOTHING`,
		f.UniqueID, f.FileID, string(f.Kind))
	return err
}

func (s *Store) GetFile(ctx context.Context, uniqueID string) (*models.StoredFile, error) {
	f := &models.StoredFile{}
	var kind string
	err := s.db.QueryRowContext(ctx, `
		SELECT unique_id, file_id, kind FROM stored_files
		WHERE unique_id = $1`, uniqueID).Scan(&f.UniqueID, &f.FileID, &kind)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Kind = models.FileKind(kind)
	return f, nil
}
