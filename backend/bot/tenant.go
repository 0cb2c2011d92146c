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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
	"github.com/efchatnet/efshare/backend/telegram"
)

const (
	waitNotice      = "<b>⌛ Please Wait...</b>"
	fileNotFoundMsg = "File not found!"
	fileErrorMsg    = "An error occurred while processing the file."
	helpMsg         = "<b>Use /start to interact with the bot!</b>"
	joinPromptMsg   = "*You need to join our compulsory channel😇 \n\nClick the link below to join 🔗 :*"

	welcomeChannelURL = "https://t.me/+tvWHQ58slElmNmQ1"

	// CallbackClose dismisses a message carrying an inline keyboard.
	CallbackClose = "close"
)

type eventKind int

const (
	eventUnknown eventKind = iota
	eventCommand
	eventContent
	eventCallback
)

// classifyUpdate tags an inbound update with its event kind. Routing is a
// pure function of the update shape; sender role and chat are checked by
// the individual handlers.
func classifyUpdate(u *telegram.Update) eventKind {
	switch {
	case u.CallbackQuery != nil:
		return eventCallback
	case u.Message == nil:
		return eventUnknown
	case strings.HasPrefix(u.Message.Text, "/"):
		return eventCommand
	default:
		if _, _, ok := contentOf(u.Message); ok {
			return eventContent
		}
		return eventUnknown
	}
}

// contentOf extracts the blob reference and kind of a content message.
// For photos the Bot API sends resolutions smallest first; the last entry
// is the original upload.
func contentOf(msg *telegram.Message) (string, models.FileKind, bool) {
	switch {
	case len(msg.Photo) > 0:
		return msg.Photo[len(msg.Photo)-1].FileID, models.FileKindPhoto, true
	case msg.Video != nil:
		return msg.Video.FileID, models.FileKindVideo, true
	case msg.Document != nil:
		return msg.Document.FileID, models.FileKindDocument, true
	case msg.Audio != nil:
		return msg.Audio.FileID, models.FileKindAudio, true
	case msg.Voice != nil:
		return msg.Voice.FileID, models.FileKindVoice, true
	}
	return "", "", false
}

// Tenant is one registered bot identity with its own credentials, store and
// handler state. All fields are set at registration and never mutated; the
// broadcast coordinator owns the only synchronized mutable state.
type Tenant struct {
	username       string
	privateGroupID int64
	adminIDs       map[int64]struct{}
	ownerID        int64
	logChannel     string

	transport Transport
	store     storage.Store
	files     *FileRegistry
	gate      *AccessGate
	delivery  *DeliveryScheduler
	broadcast *BroadcastCoordinator
	logger    hclog.Logger
}

// TenantParams collects everything a tenant needs at registration time.
// GateChannel is the post-resolution value: empty when gating is disabled.
type TenantParams struct {
	Username       string
	GateChannel    string
	PrivateGroupID int64
	AdminIDs       []int64
	OwnerID        int64
	LogChannel     string
	Transport      Transport
	Store          storage.Store
	Files          *FileRegistry
	Logger         hclog.Logger
}

func NewTenant(p TenantParams) *Tenant {
	admins := make(map[int64]struct{}, len(p.AdminIDs))
	for _, id := range p.AdminIDs {
		admins[id] = struct{}{}
	}
	t := &Tenant{
		username:       p.Username,
		privateGroupID: p.PrivateGroupID,
		adminIDs:       admins,
		ownerID:        p.OwnerID,
		logChannel:     p.LogChannel,
		transport:      p.Transport,
		store:          p.Store,
		files:          p.Files,
		logger:         p.Logger,
	}
	t.gate = NewAccessGate(p.GateChannel, p.OwnerID, p.Transport, p.Logger)
	t.delivery = NewDeliveryScheduler(p.Transport, p.Logger)
	t.broadcast = NewBroadcastCoordinator(p.Username, p.Store, p.Transport, p.Logger)
	return t
}

// Username is the tenant's public identifier, used in webhook paths and
// share links.
func (t *Tenant) Username() string {
	return t.username
}

// HandleUpdate processes one inbound event to completion. Handler failures
// are logged and contained here; nothing escapes to the dispatcher.
func (t *Tenant) HandleUpdate(ctx context.Context, u *telegram.Update) {
	switch classifyUpdate(u) {
	case eventCallback:
		t.handleCallback(ctx, u.CallbackQuery)
		return
	case eventCommand:
		t.handleCommand(ctx, u.Message)
	case eventContent:
		t.handleContent(ctx, u.Message)
	}
	if u.Message != nil {
		t.auditForward(ctx, u.Message)
	}
}

func (t *Tenant) handleCommand(ctx context.Context, msg *telegram.Message) {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return
	}
	cmd := strings.TrimPrefix(fields[0], "/")
	// Commands in groups arrive as /cmd@BotName
	cmd = strings.TrimSuffix(cmd, "@"+t.username)

	switch cmd {
	case "start":
		t.handleStart(ctx, msg, fields)
	case "help":
		t.reply(ctx, msg.Chat.ID, helpMsg, "HTML")
	case "sendall", "senall":
		t.handleSendall(ctx, msg)
	}
}

func (t *Tenant) handleStart(ctx context.Context, msg *telegram.Message, args []string) {
	t.saveSubscriber(ctx, msg.Chat.ID)

	if gate := t.gate.Check(ctx, msg.Chat.ID); !gate.Allowed {
		t.sendJoinPrompt(ctx, msg.Chat.ID, gate)
		return
	}

	if len(args) > 1 {
		t.sendFileByID(ctx, msg.Chat.ID, args[1])
		return
	}
	t.sendWelcome(ctx, msg)
}

func (t *Tenant) sendFileByID(ctx context.Context, chatID int64, uniqueID string) {
	f, err := t.files.Lookup(ctx, uniqueID)
	if errors.Is(err, storage.ErrNotFound) {
		t.reply(ctx, chatID, fileNotFoundMsg, "")
		t.logger.Info("file not found", "unique_id", uniqueID, "chat_id", chatID)
		return
	}
	if err != nil {
		t.logger.Error("file lookup failed", "unique_id", uniqueID, "error", err)
		t.reply(ctx, chatID, fileErrorMsg, "")
		return
	}
	if err := t.delivery.Deliver(ctx, chatID, f); err != nil {
		t.logger.Error("file delivery failed", "unique_id", uniqueID, "chat_id", chatID, "error", err)
	}
}

func (t *Tenant) sendWelcome(ctx context.Context, msg *telegram.Message) {
	name := ""
	if msg.From != nil {
		name = msg.From.FirstName
		if name == "" {
			name = msg.From.Username
		}
	}
	greeting := fmt.Sprintf("Hello, *%s*! 😉\n\nWelcome to our bot. Enjoy your stay!", name)
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Chat Channel", URL: welcomeChannelURL},
			{Text: "Close", CallbackData: CallbackClose},
		}},
	}
	if _, err := t.transport.SendMessage(ctx, msg.Chat.ID, greeting, &telegram.SendOptions{ParseMode: "Markdown", ReplyMarkup: markup}); err != nil {
		t.logger.Warn("failed to send welcome message", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (t *Tenant) handleSendall(ctx context.Context, msg *telegram.Message) {
	// Owner-only, private-chat-only; anything else is silently ignored
	if msg.Chat.Type != "private" || msg.From == nil || t.ownerID == 0 || msg.From.ID != t.ownerID {
		return
	}
	parts := strings.SplitN(msg.Text, " ", 3)
	if len(parts) < 3 {
		t.reply(ctx, msg.Chat.ID, "Usage: /sendall @YourBotUsername Your message here", "")
		return
	}
	if parts[1] != "@"+t.username {
		t.reply(ctx, msg.Chat.ID, "Incorrect bot username in command.", "")
		return
	}
	t.broadcast.Issue(ctx, msg.From.ID, msg.Chat.ID, parts[2])
}

func (t *Tenant) handleContent(ctx context.Context, msg *telegram.Message) {
	fileID, kind, ok := contentOf(msg)
	if !ok {
		return
	}

	// Owner uploading the broadcast image
	if kind == models.FileKindPhoto && msg.From != nil && msg.Chat.Type == "private" {
		if t.broadcast.AttachImage(ctx, msg.From.ID, fileID) {
			return
		}
	}

	// Admin posting qualifying content in the restricted group
	if msg.Chat.ID != t.privateGroupID || msg.From == nil {
		return
	}
	if _, isAdmin := t.adminIDs[msg.From.ID]; !isAdmin {
		return
	}
	t.storeGroupFile(ctx, msg.Chat.ID, fileID, kind)
}

func (t *Tenant) storeGroupFile(ctx context.Context, chatID int64, fileID string, kind models.FileKind) {
	uniqueID, err := t.files.Store(ctx, fileID, kind)
	if err != nil {
		t.logger.Error("failed to store file", "kind", kind, "error", err)
		t.reply(ctx, chatID, fileErrorMsg, "")
		return
	}

	link := fmt.Sprintf("https://t.me/%s?start=%s", t.username, uniqueID)
	placeholder, err := t.transport.SendMessage(ctx, chatID, waitNotice, &telegram.SendOptions{ParseMode: "HTML"})
	if err != nil {
		t.logger.Warn("failed to send placeholder, sending link directly", "error", err)
		t.reply(ctx, chatID, "File stored! Use this link to access it: "+link, "")
		return
	}
	if err := t.transport.EditMessageText(ctx, chatID, placeholder.MessageID, "File stored! Use this link to access it: "+link, nil); err != nil {
		t.logger.Warn("failed to edit placeholder with share link", "error", err)
	}
}

func (t *Tenant) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) {
	switch cb.Data {
	case CallbackClose:
		if cb.Message == nil {
			return
		}
		if err := t.transport.DeleteMessage(ctx, cb.Message.Chat.ID, cb.Message.MessageID); err != nil {
			t.logger.Warn("failed to delete message on close", "error", err)
		}
	case CallbackBroadcastYes, CallbackBroadcastNo, CallbackBroadcastCancel:
		t.broadcast.HandleChoice(ctx, cb.From.ID, cb.Data, cb.ID)
	}
}

func (t *Tenant) saveSubscriber(ctx context.Context, chatID int64) {
	sub := models.Subscriber{
		ChatID:      strconv.FormatInt(chatID, 10),
		BotUsername: t.username,
		JoinedAt:    time.Now().UTC(),
		Subscribed:  false,
	}
	if err := t.store.SaveSubscriber(ctx, sub); err != nil {
		t.logger.Error("failed to save subscriber", "chat_id", chatID, "error", err)
	}
}

func (t *Tenant) sendJoinPrompt(ctx context.Context, chatID int64, gate GateResult) {
	if gate.JoinURL == "" {
		t.logger.Warn("blocked chat but no join link available", "chat_id", chatID)
		return
	}
	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Join Channel", URL: gate.JoinURL},
		}},
	}
	if _, err := t.transport.SendMessage(ctx, chatID, joinPromptMsg, &telegram.SendOptions{ParseMode: "Markdown", ReplyMarkup: markup}); err != nil {
		t.logger.Warn("failed to send join prompt", "chat_id", chatID, "error", err)
	}
}

func (t *Tenant) auditForward(ctx context.Context, msg *telegram.Message) {
	if t.logChannel == "" {
		return
	}
	if err := t.transport.ForwardMessage(ctx, t.logChannel, msg.Chat.ID, msg.MessageID); err != nil {
		t.logger.Warn("audit forward failed", "chat_id", msg.Chat.ID, "message_id", msg.MessageID, "error", err)
	}
}

func (t *Tenant) reply(ctx context.Context, chatID int64, text, parseMode string) {
	var opts *telegram.SendOptions
	if parseMode != "" {
		opts = &telegram.SendOptions{ParseMode: parseMode}
	}
	if _, err := t.transport.SendMessage(ctx, chatID, text, opts); err != nil {
		t.logger.Warn("failed to send reply", "chat_id", chatID, "error", err)
	}
}
