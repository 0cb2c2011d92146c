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
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/efchatnet/efshare/backend/config"
	"github.com/efchatnet/efshare/backend/storage"
	rediscache "github.com/efchatnet/efshare/backend/storage/redis"
	"github.com/efchatnet/efshare/backend/telegram"
)

// Registry maps a tenant's public identifier to its handle and routes
// inbound updates onto the worker pool. The tenant map is written only
// during startup registration; after that it is read concurrently without
// locking.
type Registry struct {
	logger        hclog.Logger
	pool          *workerPool
	tenants       map[string]*Tenant
	webhookBase   string
	webhookSecret string
	logChannel    string
}

type RegistryOptions struct {
	// Workers bounds concurrent update processing across all tenants.
	Workers int

	// WebhookBase is the public base URL updates are delivered to; when
	// set, each registered tenant gets its webhook pointed at
	// {WebhookBase}/webhook/{username}.
	WebhookBase   string
	WebhookSecret string

	// LogChannel, when set, receives a forwarded copy of every message.
	LogChannel string
}

func NewRegistry(logger hclog.Logger, opts RegistryOptions) *Registry {
	workers := opts.Workers
	if workers <= 0 {
		workers = 16
	}
	return &Registry{
		logger:        logger,
		pool:          newWorkerPool(workers, workers*4),
		tenants:       make(map[string]*Tenant),
		webhookBase:   strings.TrimSuffix(opts.WebhookBase, "/"),
		webhookSecret: opts.WebhookSecret,
		logChannel:    opts.LogChannel,
	}
}

// Register validates the tenant's credentials, resolves its gate channel,
// points its webhook at this service and adds it to the dispatch table.
// An unresolvable gate channel disables gating with a warning; it never
// fails registration. A failed credential check does.
func (r *Registry) Register(ctx context.Context, cfg config.TenantConfig, store storage.Store, cache *rediscache.FileCache, transport Transport) (*Tenant, error) {
	me, err := transport.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("credential validation failed: %w", err)
	}
	username := me.Username
	logger := r.logger.Named(username)

	gateChannel := cfg.ForceSubChannel
	if gateChannel != "" {
		if _, err := transport.GetChat(ctx, gateChannel); err != nil {
			logger.Warn("gate channel unresolvable, disabling force subscription",
				"channel", gateChannel, "error", err)
			gateChannel = ""
		} else {
			logger.Info("force subscription enabled", "channel", gateChannel)
		}
	}

	if r.webhookBase != "" {
		url := fmt.Sprintf("%s/webhook/%s", r.webhookBase, username)
		if err := transport.SetWebhook(ctx, url, r.webhookSecret); err != nil {
			logger.Error("failed to set webhook", "url", url, "error", err)
		} else {
			logger.Info("webhook set", "url", url)
		}
	}

	tenant := NewTenant(TenantParams{
		Username:       username,
		GateChannel:    gateChannel,
		PrivateGroupID: cfg.PrivateGroupID,
		AdminIDs:       cfg.AdminIDs,
		OwnerID:        cfg.OwnerID,
		LogChannel:     r.logChannel,
		Transport:      transport,
		Store:          store,
		Files:          NewFileRegistry(store, cache, logger),
		Logger:         logger,
	})
	r.tenants[username] = tenant
	logger.Info("tenant registered")
	return tenant, nil
}

// Dispatch hands an update to the named tenant's handler via the worker
// pool. It returns false for an unknown identifier, which the front door
// maps to a 404. Each update is processed as an independent unit of work;
// no ordering is guaranteed between updates, even for one chat.
func (r *Registry) Dispatch(botUsername string, u *telegram.Update) bool {
	tenant, ok := r.tenants[botUsername]
	if !ok {
		return false
	}
	r.pool.Submit(func() {
		tenant.HandleUpdate(context.Background(), u)
	})
	return true
}

// Shutdown stops accepting work, drains the pool and waits for in-flight
// broadcasts to finish.
func (r *Registry) Shutdown() {
	r.pool.Close()
	for _, tenant := range r.tenants {
		tenant.broadcast.Wait()
	}
}
