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

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/efchatnet/efshare/backend/models"
)

const (
	defaultAPIURL = "https://api.telegram.org"

	// Every Bot API call is bounded; a hung round-trip to one chat must
	// not hold a dispatch worker forever.
	callTimeout = 30 * time.Second
)

// Client is a minimal Bot API client covering the calls this service makes.
// All methods return an error for any non-ok API response; callers decide
// whether that failure is fatal for their operation.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: defaultAPIURL,
		http:    &http.Client{Timeout: callTimeout},
	}
}

// NewClientWithURL is used by tests to point the client at a stub server.
func NewClientWithURL(token, baseURL string) *Client {
	c := NewClient(token)
	c.baseURL = baseURL
	return c
}

// SendOptions are the per-send knobs this service uses.
type SendOptions struct {
	ParseMode      string
	ProtectContent bool
	ReplyMarkup    *InlineKeyboardMarkup
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, params map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to marshal %s params: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		return fmt.Errorf("%s rejected: %s", method, apiResp.Description)
	}
	if out != nil {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var me User
	if err := c.call(ctx, "getMe", map[string]interface{}{}, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

func sendParams(chatID int64, opts *SendOptions) map[string]interface{} {
	params := map[string]interface{}{"chat_id": chatID}
	if opts != nil {
		if opts.ParseMode != "" {
			params["parse_mode"] = opts.ParseMode
		}
		if opts.ProtectContent {
			params["protect_content"] = true
		}
		if opts.ReplyMarkup != nil {
			params["reply_markup"] = opts.ReplyMarkup
		}
	}
	return params
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	params := sendParams(chatID, opts)
	params["text"] = text

	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, opts *SendOptions) (*Message, error) {
	params := sendParams(chatID, opts)
	params["photo"] = fileID
	if caption != "" {
		params["caption"] = caption
	}

	var msg Message
	if err := c.call(ctx, "sendPhoto", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendFile sends a stored content item using the method matching its kind.
func (c *Client) SendFile(ctx context.Context, chatID int64, kind models.FileKind, fileID string, opts *SendOptions) (*Message, error) {
	var method, field string
	switch kind {
	case models.FileKindPhoto:
		method, field = "sendPhoto", "photo"
	case models.FileKindVideo:
		method, field = "sendVideo", "video"
	case models.FileKindDocument:
		method, field = "sendDocument", "document"
	case models.FileKindAudio:
		method, field = "sendAudio", "audio"
	case models.FileKindVoice:
		method, field = "sendVoice", "voice"
	default:
		return nil, fmt.Errorf("unknown file kind %q", kind)
	}

	params := sendParams(chatID, opts)
	params[field] = fileID

	var msg Message
	if err := c.call(ctx, method, params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, markup *InlineKeyboardMarkup) error {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
		"text":       text,
	}
	if markup != nil {
		params["reply_markup"] = markup
	}
	return c.call(ctx, "editMessageText", params, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	return c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	params := map[string]interface{}{"callback_query_id": callbackID}
	if text != "" {
		params["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", params, nil)
}

// GetChatMember returns the membership status of userID in the channel.
// The channel may be a numeric id or an @username, as configured.
func (c *Client) GetChatMember(ctx context.Context, channel string, userID int64) (*ChatMember, error) {
	var member ChatMember
	err := c.call(ctx, "getChatMember", map[string]interface{}{
		"chat_id": channel,
		"user_id": userID,
	}, &member)
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (c *Client) GetChat(ctx context.Context, chat string) (*Chat, error) {
	var result Chat
	if err := c.call(ctx, "getChat", map[string]interface{}{"chat_id": chat}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ForwardMessage(ctx context.Context, destChannel string, fromChatID int64, messageID int) error {
	return c.call(ctx, "forwardMessage", map[string]interface{}{
		"chat_id":      destChannel,
		"from_chat_id": fromChatID,
		"message_id":   messageID,
	}, nil)
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	params := map[string]interface{}{"url": url}
	if secretToken != "" {
		params["secret_token"] = secretToken
	}
	return c.call(ctx, "setWebhook", params, nil)
}
