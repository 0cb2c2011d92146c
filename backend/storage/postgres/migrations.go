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

func (s *Store) Migrate() error {
	migrations := []string{
		// Subscriber records, one per (chat, tenant), never deleted
		`CREATE TABLE IF NOT EXISTS subscribers (
			chat_id VARCHAR(255) NOT NULL,
			bot_username VARCHAR(255) NOT NULL,
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			subscribed BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (chat_id, bot_username)
		)`,

		// Shared file records, addressed by opaque unique id
		`CREATE TABLE IF NOT EXISTS stored_files (
			unique_id VARCHAR(64) PRIMARY KEY,
			file_id TEXT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_subscribers_bot
			ON subscribers(bot_username)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
