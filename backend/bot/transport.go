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

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/telegram"
)

// Transport is the outbound messaging boundary. Every call is fallible;
// callers log and degrade instead of propagating transport failures.
// *telegram.Client is the production implementation.
type Transport interface {
	GetMe(ctx context.Context) (*telegram.User, error)
	SetWebhook(ctx context.Context, url, secretToken string) error
	SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error)
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *telegram.SendOptions) (*telegram.Message, error)
	SendFile(ctx context.Context, chatID int64, kind models.FileKind, fileID string, opts *telegram.SendOptions) (*telegram.Message, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
	GetChatMember(ctx context.Context, channel string, userID int64) (*telegram.ChatMember, error)
	GetChat(ctx context.Context, chat string) (*telegram.Chat, error)
	ForwardMessage(ctx context.Context, destChannel string, fromChatID int64, messageID int) error
}
