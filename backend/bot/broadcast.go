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
	"fmt"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/storage"
	"github.com/efchatnet/efshare/backend/telegram"
)

// Callback payloads of the broadcast prompt keyboard.
const (
	CallbackBroadcastYes    = "broadcast_yes"
	CallbackBroadcastNo     = "broadcast_no"
	CallbackBroadcastCancel = "broadcast_cancel"
)

type jobState int

const (
	jobPending jobState = iota
	jobAwaitingImage
	jobBroadcasting
)

// broadcastJob is the in-memory state of one owner-initiated broadcast.
// At most one job exists per owner; the coordinator's mutex guards the map
// and every field access.
type broadcastJob struct {
	text            string
	imageFileID     string
	state           jobState
	promptChatID    int64
	promptMessageID int
}

// BroadcastCoordinator runs the two-step broadcast confirmation and the
// fan-out to every subscriber of the tenant. The job map is the only shared
// mutable structure; fan-out runs as an independent task so issuing the
// command returns immediately.
type BroadcastCoordinator struct {
	botUsername string
	store       storage.SubscriberStore
	transport   Transport
	logger      hclog.Logger

	mu   sync.Mutex
	jobs map[int64]*broadcastJob

	inflight sync.WaitGroup
}

func NewBroadcastCoordinator(botUsername string, store storage.SubscriberStore, transport Transport, logger hclog.Logger) *BroadcastCoordinator {
	return &BroadcastCoordinator{
		botUsername: botUsername,
		store:       store,
		transport:   transport,
		logger:      logger,
		jobs:        make(map[int64]*broadcastJob),
	}
}

// Issue starts a broadcast for the owner and sends the attach-image prompt.
// If a job already exists for the owner it is acted on in place: a running
// fan-out rejects the command, a pending or image-awaiting job is superseded
// by the new text. A second job object is never created for the same owner.
func (c *BroadcastCoordinator) Issue(ctx context.Context, ownerID, chatID int64, text string) {
	c.mu.Lock()
	if existing, ok := c.jobs[ownerID]; ok {
		if existing.state == jobBroadcasting {
			c.mu.Unlock()
			if _, err := c.transport.SendMessage(ctx, chatID, "A broadcast is already in progress.", nil); err != nil {
				c.logger.Warn("failed to send broadcast-busy notice", "error", err)
			}
			return
		}
		// Supersede the stale prompt and reuse the entry
		stalePromptChat, stalePromptMsg := existing.promptChatID, existing.promptMessageID
		existing.text = text
		existing.imageFileID = ""
		existing.state = jobPending
		existing.promptChatID = chatID
		existing.promptMessageID = 0
		c.mu.Unlock()
		if stalePromptMsg != 0 {
			if err := c.transport.EditMessageText(ctx, stalePromptChat, stalePromptMsg, "Command superseded", nil); err != nil {
				c.logger.Warn("failed to mark superseded prompt", "error", err)
			}
		}
	} else {
		c.jobs[ownerID] = &broadcastJob{
			text:         text,
			state:        jobPending,
			promptChatID: chatID,
		}
		c.mu.Unlock()
	}

	markup := &telegram.InlineKeyboardMarkup{
		InlineKeyboard: [][]telegram.InlineKeyboardButton{{
			{Text: "Yes", CallbackData: CallbackBroadcastYes},
			{Text: "No", CallbackData: CallbackBroadcastNo},
		}},
	}
	prompt, err := c.transport.SendMessage(ctx, chatID, "Do you want to attach an image?", &telegram.SendOptions{ReplyMarkup: markup})
	if err != nil {
		c.logger.Error("failed to send broadcast prompt, discarding job", "error", err)
		c.mu.Lock()
		delete(c.jobs, ownerID)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	if job, ok := c.jobs[ownerID]; ok {
		job.promptMessageID = prompt.MessageID
	}
	c.mu.Unlock()
}

// HandleChoice applies a prompt button press for the owner's live job.
func (c *BroadcastCoordinator) HandleChoice(ctx context.Context, ownerID int64, data string, callbackID string) {
	c.mu.Lock()
	job, ok := c.jobs[ownerID]
	if !ok {
		c.mu.Unlock()
		c.answer(ctx, callbackID, "No broadcast pending.")
		return
	}

	switch data {
	case CallbackBroadcastNo:
		job.state = jobBroadcasting
		snapshot := *job
		c.mu.Unlock()
		if err := c.transport.EditMessageText(ctx, snapshot.promptChatID, snapshot.promptMessageID, "Broadcasting...", nil); err != nil {
			c.logger.Warn("failed to edit broadcast prompt", "error", err)
		}
		c.answer(ctx, callbackID, "Broadcast started.")
		c.startFanOut(ownerID, snapshot)

	case CallbackBroadcastYes:
		job.state = jobAwaitingImage
		snapshot := *job
		c.mu.Unlock()
		markup := &telegram.InlineKeyboardMarkup{
			InlineKeyboard: [][]telegram.InlineKeyboardButton{{
				{Text: "Cancel", CallbackData: CallbackBroadcastCancel},
			}},
		}
		if err := c.transport.EditMessageText(ctx, snapshot.promptChatID, snapshot.promptMessageID, "Please upload an image to attach to the broadcast.", markup); err != nil {
			c.logger.Warn("failed to edit broadcast prompt", "error", err)
		}
		c.answer(ctx, callbackID, "Awaiting image upload.")

	case CallbackBroadcastCancel:
		snapshot := *job
		delete(c.jobs, ownerID)
		c.mu.Unlock()
		if err := c.transport.EditMessageText(ctx, snapshot.promptChatID, snapshot.promptMessageID, "Command canceled", nil); err != nil {
			c.logger.Warn("failed to edit broadcast prompt on cancel", "error", err)
		}
		c.answer(ctx, callbackID, "Broadcast canceled.")

	default:
		c.mu.Unlock()
	}
}

// AwaitingImage reports whether the owner's job is waiting for an image.
func (c *BroadcastCoordinator) AwaitingImage(ownerID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[ownerID]
	return ok && job.state == jobAwaitingImage
}

// AttachImage attaches the uploaded image to an image-awaiting job and
// starts the fan-out. Returns false when no job is waiting for an image.
func (c *BroadcastCoordinator) AttachImage(ctx context.Context, ownerID int64, fileID string) bool {
	c.mu.Lock()
	job, ok := c.jobs[ownerID]
	if !ok || job.state != jobAwaitingImage {
		c.mu.Unlock()
		return false
	}
	job.imageFileID = fileID
	job.state = jobBroadcasting
	snapshot := *job
	c.mu.Unlock()

	if err := c.transport.EditMessageText(ctx, snapshot.promptChatID, snapshot.promptMessageID, "Image received. Broadcasting...", nil); err != nil {
		c.logger.Warn("failed to edit broadcast prompt", "error", err)
	}
	c.startFanOut(ownerID, snapshot)
	return true
}

// Wait blocks until all in-flight fan-outs have finished. Called on
// shutdown so a broadcast is not cut off mid-iteration.
func (c *BroadcastCoordinator) Wait() {
	c.inflight.Wait()
}

func (c *BroadcastCoordinator) startFanOut(ownerID int64, job broadcastJob) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer func() {
			c.mu.Lock()
			delete(c.jobs, ownerID)
			c.mu.Unlock()
		}()
		c.fanOut(ownerID, job)
	}()
}

// fanOut delivers the broadcast to every subscriber record, one best-effort
// attempt each, then reports the accounting to the owner and marks the
// prompt complete. One recipient's failure never aborts the iteration.
func (c *BroadcastCoordinator) fanOut(ownerID int64, job broadcastJob) {
	ctx := context.Background()

	subs, err := c.store.ListSubscribers(ctx, c.botUsername)
	if err != nil {
		c.logger.Error("failed to list subscribers for broadcast", "error", err)
		return
	}

	var report models.BroadcastReport
	opts := &telegram.SendOptions{ProtectContent: true}
	for _, sub := range subs {
		report.Total++
		chatID, err := strconv.ParseInt(sub.ChatID, 10, 64)
		if err != nil {
			c.logger.Warn("skipping malformed subscriber chat id", "chat_id", sub.ChatID)
			report.Blocked++
			continue
		}
		if job.imageFileID != "" {
			_, err = c.transport.SendPhoto(ctx, chatID, job.imageFileID, job.text, opts)
		} else {
			_, err = c.transport.SendMessage(ctx, chatID, job.text, opts)
		}
		if err != nil {
			c.logger.Warn("broadcast delivery failed", "chat_id", chatID, "error", err)
			report.Blocked++
			continue
		}
		report.Sent++
	}

	summary := fmt.Sprintf(
		"<b>Broadcast Completed</b>\n\n<b>Total Users:</b> %d\n<b>Sent:</b> %d\n<b>Blocked:</b> %d",
		report.Total, report.Sent, report.Blocked)
	if _, err := c.transport.SendMessage(ctx, ownerID, summary, &telegram.SendOptions{ParseMode: "HTML"}); err != nil {
		c.logger.Error("failed to send broadcast summary", "error", err)
	}
	if err := c.transport.EditMessageText(ctx, job.promptChatID, job.promptMessageID, "Broadcasting Completed", nil); err != nil {
		c.logger.Warn("failed to mark broadcast prompt complete", "error", err)
	}
	c.logger.Info("broadcast completed",
		"total", report.Total, "sent", report.Sent, "blocked", report.Blocked)
}

func (c *BroadcastCoordinator) answer(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if err := c.transport.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		c.logger.Warn("failed to answer callback query", "error", err)
	}
}
