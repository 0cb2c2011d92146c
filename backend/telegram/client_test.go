// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efchatnet/efshare/backend/models"
)

type apiCall struct {
	path   string
	params map[string]interface{}
}

type apiRecorder struct {
	mu    sync.Mutex
	calls []apiCall
}

func (r *apiRecorder) all() []apiCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]apiCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func newStubAPI(t *testing.T, result string) (*Client, *apiRecorder) {
	t.Helper()

	rec := &apiRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		rec.mu.Lock()
		rec.calls = append(rec.calls, apiCall{path: r.URL.Path, params: params})
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)

	return NewClientWithURL("123:token", srv.URL), rec
}

func TestClient_SendMessage(t *testing.T) {
	client, rec := newStubAPI(t, `{"message_id":7,"chat":{"id":10,"type":"private"}}`)

	msg, err := client.SendMessage(context.Background(), 10, "hi", &SendOptions{ParseMode: "HTML", ProtectContent: true})
	require.NoError(t, err)
	assert.Equal(t, 7, msg.MessageID)

	calls := rec.all()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "/bot123:token/sendMessage", call.path)
	assert.Equal(t, "hi", call.params["text"])
	assert.Equal(t, "HTML", call.params["parse_mode"])
	assert.Equal(t, true, call.params["protect_content"])
	assert.Equal(t, float64(10), call.params["chat_id"])
}

func TestClient_SendFileMethodByKind(t *testing.T) {
	tests := []struct {
		kind   models.FileKind
		method string
		field  string
	}{
		{models.FileKindPhoto, "sendPhoto", "photo"},
		{models.FileKindVideo, "sendVideo", "video"},
		{models.FileKindDocument, "sendDocument", "document"},
		{models.FileKindAudio, "sendAudio", "audio"},
		{models.FileKindVoice, "sendVoice", "voice"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			client, rec := newStubAPI(t, `{"message_id":1,"chat":{"id":10,"type":"private"}}`)

			_, err := client.SendFile(context.Background(), 10, tt.kind, "blob", nil)
			require.NoError(t, err)

			calls := rec.all()
			require.Len(t, calls, 1)
			assert.Equal(t, "/bot123:token/"+tt.method, calls[0].path)
			assert.Equal(t, "blob", calls[0].params[tt.field])
		})
	}
}

func TestClient_UnknownKindRejected(t *testing.T) {
	client, _ := newStubAPI(t, `{}`)

	_, err := client.SendFile(context.Background(), 10, models.FileKind("sticker"), "blob", nil)
	assert.Error(t, err)
}

func TestClient_GetChatMember(t *testing.T) {
	client, rec := newStubAPI(t, `{"status":"administrator","user":{"id":55}}`)

	member, err := client.GetChatMember(context.Background(), "@channel", 55)
	require.NoError(t, err)
	assert.Equal(t, "administrator", member.Status)

	calls := rec.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "@channel", calls[0].params["chat_id"])
	assert.Equal(t, float64(55), calls[0].params["user_id"])
}

func TestClient_APIErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"description":"Forbidden: bot was blocked by the user"}`))
	}))
	defer srv.Close()

	client := NewClientWithURL("123:token", srv.URL)
	_, err := client.SendMessage(context.Background(), 10, "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked by the user")
}
