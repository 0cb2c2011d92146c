// Copyright (C) 2025 efchat.net <tj@efchat.net>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package bot

import (
	"context"

	"github.com/hashicorp/go-hclog"
)

// GateResult is the outcome of a membership check. When Allowed is false,
// JoinURL carries the channel join link for the prompt shown to the user;
// it may be empty if the link could not be resolved.
type GateResult struct {
	Allowed bool
	JoinURL string
}

// AccessGate enforces the force-subscription policy against one configured
// channel. Gating is skipped entirely for group/channel chats (non-positive
// ids), for the tenant owner, and when no channel is configured. Any
// membership status other than member or administrator blocks, and so does
// a failed membership query.
type AccessGate struct {
	channel   string // empty when gating is disabled
	ownerID   int64
	transport Transport
	logger    hclog.Logger
}

func NewAccessGate(channel string, ownerID int64, transport Transport, logger hclog.Logger) *AccessGate {
	return &AccessGate{
		channel:   channel,
		ownerID:   ownerID,
		transport: transport,
		logger:    logger,
	}
}

// Enabled reports whether a gate channel is configured.
func (g *AccessGate) Enabled() bool {
	return g.channel != ""
}

func (g *AccessGate) Check(ctx context.Context, chatID int64) GateResult {
	if g.channel == "" {
		return GateResult{Allowed: true}
	}
	if chatID <= 0 {
		// Groups and channels are never gated
		return GateResult{Allowed: true}
	}
	if g.ownerID != 0 && chatID == g.ownerID {
		return GateResult{Allowed: true}
	}

	member, err := g.transport.GetChatMember(ctx, g.channel, chatID)
	if err != nil {
		g.logger.Warn("membership check failed, blocking", "chat_id", chatID, "error", err)
		return g.blocked(ctx)
	}
	switch member.Status {
	case "member", "administrator":
		return GateResult{Allowed: true}
	}
	return g.blocked(ctx)
}

func (g *AccessGate) blocked(ctx context.Context) GateResult {
	result := GateResult{Allowed: false}
	chat, err := g.transport.GetChat(ctx, g.channel)
	if err != nil {
		g.logger.Error("failed to resolve gate channel for join prompt", "channel", g.channel, "error", err)
		return result
	}
	if chat.Username != "" {
		result.JoinURL = "https://t.me/" + chat.Username
	}
	return result
}
