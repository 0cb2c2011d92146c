// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
	"github.com/efchatnet/efshare/backend/telegram"
)

type sentMessage struct {
	chatID  int64
	method  string // "text", "photo", or the file kind
	text    string // message text or photo caption
	fileID  string
	protect bool
	opts    *telegram.SendOptions
}

type editCall struct {
	chatID    int64
	messageID int
	text      string
}

type deleteCall struct {
	chatID    int64
	messageID int
}

type forwardCall struct {
	destChannel string
	fromChatID  int64
	messageID   int
}

// fakeTransport implements Transport in memory. Failures are programmed
// per chat id for sends and globally for the other calls.
type fakeTransport struct {
	mu sync.Mutex

	username     string
	getMeErr     error
	chatUsername string
	getChatErr   error

	memberStatus map[int64]string
	memberErr    error

	sendErr   map[int64]error
	deleteErr error

	nextID   int
	messages []sentMessage
	edits    []editCall
	deletes  []deleteCall
	forwards []forwardCall
	answers  []string
	webhooks []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		username:     "testbot",
		chatUsername: "gatechannel",
		memberStatus: make(map[int64]string),
		sendErr:      make(map[int64]error),
		nextID:       1,
	}
}

func (f *fakeTransport) GetMe(ctx context.Context) (*telegram.User, error) {
	if f.getMeErr != nil {
		return nil, f.getMeErr
	}
	return &telegram.User{ID: 42, Username: f.username}, nil
}

func (f *fakeTransport) SetWebhook(ctx context.Context, url, secretToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, url)
	return nil
}

func (f *fakeTransport) send(chatID int64, msg sentMessage) (*telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[chatID]; err != nil {
		return nil, err
	}
	id := f.nextID
	f.nextID++
	f.messages = append(f.messages, msg)
	return &telegram.Message{MessageID: id, Chat: telegram.Chat{ID: chatID}}, nil
}

func (f *fakeTransport) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return f.send(chatID, sentMessage{
		chatID: chatID, method: "text", text: text,
		protect: opts != nil && opts.ProtectContent, opts: opts,
	})
}

func (f *fakeTransport) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return f.send(chatID, sentMessage{
		chatID: chatID, method: "photo", text: caption, fileID: fileID,
		protect: opts != nil && opts.ProtectContent, opts: opts,
	})
}

func (f *fakeTransport) SendFile(ctx context.Context, chatID int64, kind models.FileKind, fileID string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return f.send(chatID, sentMessage{
		chatID: chatID, method: string(kind), fileID: fileID,
		protect: opts != nil && opts.ProtectContent, opts: opts,
	})
}

func (f *fakeTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, editCall{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (f *fakeTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, deleteCall{chatID: chatID, messageID: messageID})
	return nil
}

func (f *fakeTransport) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeTransport) GetChatMember(ctx context.Context, channel string, userID int64) (*telegram.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	status, ok := f.memberStatus[userID]
	if !ok {
		status = "left"
	}
	return &telegram.ChatMember{Status: status}, nil
}

func (f *fakeTransport) GetChat(ctx context.Context, chat string) (*telegram.Chat, error) {
	if f.getChatErr != nil {
		return nil, f.getChatErr
	}
	return &telegram.Chat{ID: -100, Type: "channel", Username: f.chatUsername}, nil
}

func (f *fakeTransport) ForwardMessage(ctx context.Context, destChannel string, fromChatID int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards = append(f.forwards, forwardCall{destChannel: destChannel, fromChatID: fromChatID, messageID: messageID})
	return nil
}

func (f *fakeTransport) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeTransport) textsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.messages {
		if m.chatID == chatID && m.method == "text" {
			out = append(out, m.text)
		}
	}
	return out
}

func (f *fakeTransport) editedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.edits {
		out = append(out, e.text)
	}
	return out
}

func (f *fakeTransport) deleteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes)
}

func (f *fakeTransport) forwardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.forwards)
}

// fakeStore implements storage.Store in memory with the same idempotence
// semantics as the Postgres store.
type fakeStore struct {
	mu    sync.Mutex
	subs  map[string]models.Subscriber
	files map[string]models.StoredFile

	saveErr   error
	listErr   error
	getErr    error
	insertErr error

	// When non-nil, ListSubscribers blocks until the channel is closed.
	listGate chan struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		subs:  make(map[string]models.Subscriber),
		files: make(map[string]models.StoredFile),
	}
}

func (s *fakeStore) SaveSubscriber(ctx context.Context, sub models.Subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := sub.ChatID + "|" + sub.BotUsername
	if _, ok := s.subs[key]; ok {
		return nil
	}
	s.subs[key] = sub
	return nil
}

func (s *fakeStore) ListSubscribers(ctx context.Context, botUsername string) ([]models.Subscriber, error) {
	s.mu.Lock()
	gate := s.listGate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Subscriber
	for _, sub := range s.subs {
		if sub.BotUsername == botUsername {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertFile(ctx context.Context, f models.StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if _, ok := s.files[f.UniqueID]; ok {
		// Duplicate insert is a no-op, never an overwrite
		return nil
	}
	s.files[f.UniqueID] = f
	return nil
}

func (s *fakeStore) GetFile(ctx context.Context, uniqueID string) (*models.StoredFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	f, ok := s.files[uniqueID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &f, nil
}

func (s *fakeStore) addSubscriber(chatID, botUsername string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[chatID+"|"+botUsername] = models.Subscriber{ChatID: chatID, BotUsername: botUsername}
}

func (s *fakeStore) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

var errTransport = errors.New("transport failure")
