// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efchatnet/efshare/backend/bot"
	"github.com/efchatnet/efshare/backend/config"
	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
	"github.com/efchatnet/efshare/backend/telegram"
)

// stubTransport satisfies bot.Transport with successful no-ops; the tests
// here only exercise HTTP routing, not tenant behavior.
type stubTransport struct{}

func (stubTransport) GetMe(ctx context.Context) (*telegram.User, error) {
	return &telegram.User{ID: 1, Username: "testbot"}, nil
}
func (stubTransport) SetWebhook(ctx context.Context, url, secretToken string) error { return nil }
func (stubTransport) SendMessage(ctx context.Context, chatID int64, text string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: chatID}}, nil
}
func (stubTransport) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: chatID}}, nil
}
func (stubTransport) SendFile(ctx context.Context, chatID int64, kind models.FileKind, fileID string, opts *telegram.SendOptions) (*telegram.Message, error) {
	return &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: chatID}}, nil
}
func (stubTransport) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *telegram.InlineKeyboardMarkup) error {
	return nil
}
func (stubTransport) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return nil
}
func (stubTransport) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return nil
}
func (stubTransport) GetChatMember(ctx context.Context, channel string, userID int64) (*telegram.ChatMember, error) {
	return &telegram.ChatMember{Status: "member"}, nil
}
func (stubTransport) GetChat(ctx context.Context, chat string) (*telegram.Chat, error) {
	return &telegram.Chat{ID: -1, Type: "channel"}, nil
}
func (stubTransport) ForwardMessage(ctx context.Context, destChannel string, fromChatID int64, messageID int) error {
	return nil
}

// stubStore counts subscriber saves so tests can observe that an update
// actually reached the tenant.
type stubStore struct{ saves int64 }

func (s *stubStore) SaveSubscriber(ctx context.Context, sub models.Subscriber) error {
	atomic.AddInt64(&s.saves, 1)
	return nil
}
func (s *stubStore) ListSubscribers(ctx context.Context, botUsername string) ([]models.Subscriber, error) {
	return nil, nil
}
func (s *stubStore) InsertFile(ctx context.Context, f models.StoredFile) error { return nil }
func (s *stubStore) GetFile(ctx context.Context, uniqueID string) (*models.StoredFile, error) {
	return nil, storage.ErrNotFound
}

func newTestServer(t *testing.T, store *stubStore) (*httptest.Server, *bot.Registry) {
	t.Helper()

	registry := bot.NewRegistry(hclog.NewNullLogger(), bot.RegistryOptions{Workers: 2})
	_, err := registry.Register(context.Background(), config.TenantConfig{Token: "t"}, store, nil, stubTransport{})
	require.NoError(t, err)

	h := NewWebhookHandler(registry, hclog.NewNullLogger())
	r := mux.NewRouter()
	r.HandleFunc("/webhook/{botUsername}", h.HandleUpdate).Methods("POST")
	r.HandleFunc("/", Home).Methods("GET")

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, registry
}

func TestWebhook_UnknownBot(t *testing.T) {
	srv, registry := newTestServer(t, &stubStore{})
	defer registry.Shutdown()

	resp, err := http.Post(srv.URL+"/webhook/nobody", "application/json", strings.NewReader(`{"update_id":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhook_DispatchesUpdate(t *testing.T) {
	store := &stubStore{}
	srv, registry := newTestServer(t, store)
	defer registry.Shutdown()

	body := `{"update_id":1,"message":{"message_id":1,"from":{"id":10},"chat":{"id":10,"type":"private"},"text":"/start"}}`
	resp, err := http.Post(srv.URL+"/webhook/testbot", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&store.saves) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestWebhook_MalformedBodyAcknowledged(t *testing.T) {
	srv, registry := newTestServer(t, &stubStore{})
	defer registry.Shutdown()

	resp, err := http.Post(srv.URL+"/webhook/testbot", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	// Acknowledged so the provider stops retrying a poison update
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHome(t *testing.T) {
	srv, registry := newTestServer(t, &stubStore{})
	defer registry.Shutdown()

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
