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
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/models"
	"github.com/efchatnet/efshare/backend/telegram"
)

// deleteAfter is how long a delivered file stays in the recipient's chat.
const deleteAfter = 20 * time.Minute

// deleteCallTimeout bounds the deferred delete call, which runs detached
// from any request context.
const deleteCallTimeout = 30 * time.Second

// DeliveryScheduler sends stored content with protection enabled and
// schedules the removal of each delivered message after a fixed delay.
// Deliver returns as soon as the send completes; the deletion runs as an
// independent task whose failure is logged and swallowed (the message
// already being gone is itself a success condition).
type DeliveryScheduler struct {
	transport Transport
	logger    hclog.Logger
	delay     time.Duration
}

func NewDeliveryScheduler(transport Transport, logger hclog.Logger) *DeliveryScheduler {
	return &DeliveryScheduler{
		transport: transport,
		logger:    logger,
		delay:     deleteAfter,
	}
}

func (s *DeliveryScheduler) Deliver(ctx context.Context, chatID int64, f *models.StoredFile) error {
	msg, err := s.transport.SendFile(ctx, chatID, f.Kind, f.FileID, &telegram.SendOptions{ProtectContent: true})
	if err != nil {
		return err
	}
	s.scheduleDelete(chatID, msg.MessageID)
	return nil
}

// scheduleDelete arms the deferred removal of one delivered message. There
// is no cancellation: once scheduled, the delete fires regardless of what
// else happens to the chat.
func (s *DeliveryScheduler) scheduleDelete(chatID int64, messageID int) {
	time.AfterFunc(s.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), deleteCallTimeout)
		defer cancel()

		if err := s.transport.DeleteMessage(ctx, chatID, messageID); err != nil {
			s.logger.Warn("deferred delete failed", "chat_id", chatID, "message_id", messageID, "error", err)
			return
		}
		s.logger.Info("deleted delivered message", "chat_id", chatID, "message_id", messageID)
	})
}
