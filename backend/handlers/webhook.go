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

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/bot"
	"github.com/efchatnet/efshare/backend/telegram"
)

// WebhookHandler is the inbound front door: one route per tenant, keyed by
// the bot username in the path. The provider retries deliveries that do not
// get a 2xx, so a malformed body is acknowledged and dropped rather than
// bounced forever.
type WebhookHandler struct {
	registry *bot.Registry
	logger   hclog.Logger
}

func NewWebhookHandler(registry *bot.Registry, logger hclog.Logger) *WebhookHandler {
	return &WebhookHandler{registry: registry, logger: logger}
}

func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	botUsername := vars["botUsername"]

	var update telegram.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("failed to decode update", "bot", botUsername, "error", err)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
		return
	}

	if !h.registry.Dispatch(botUsername, &update) {
		h.logger.Error("webhook request for unknown bot", "bot", botUsername)
		http.Error(w, "Unknown bot", http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Home is the root liveness page.
func Home(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("efshare is running"))
}
