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

package models

import "time"

// FileKind is the content kind of a stored file.
type FileKind string

const (
	FileKindPhoto    FileKind = "photo"
	FileKindVideo    FileKind = "video"
	FileKindDocument FileKind = "document"
	FileKindAudio    FileKind = "audio"
	FileKindVoice    FileKind = "voice"
)

// Valid reports whether k is one of the recognized content kinds.
func (k FileKind) Valid() bool {
	switch k {
	case FileKindPhoto, FileKindVideo, FileKindDocument, FileKindAudio, FileKindVoice:
		return true
	}
	return false
}

// Subscriber is one chat known to a tenant. A record is created the first
// time a chat interacts with the tenant and is never deleted. Subscribed is
// persisted at creation and currently never read or toggled.
type Subscriber struct {
	ChatID      string    `json:"chat_id"`
	BotUsername string    `json:"bot_username"`
	JoinedAt    time.Time `json:"joined_at"`
	Subscribed  bool      `json:"subscribed"`
}

// StoredFile is one shared content item, addressed by an opaque unique id.
// FileID is the provider-issued blob reference and is only meaningful to the
// tenant's own bot credentials.
type StoredFile struct {
	UniqueID string   `json:"unique_id"`
	FileID   string   `json:"file_id"`
	Kind     FileKind `json:"kind"`
}

// BroadcastReport is the accounting of one completed fan-out.
// Total == Sent + Blocked always holds.
type BroadcastReport struct {
	Total   int `json:"total"`
	Sent    int `json:"sent"`
	Blocked int `json:"blocked"`
}
