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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// maxTenantSlots is how many numbered tenant slots are scanned in the
// environment (BOT_TOKEN_1 .. BOT_TOKEN_6).
const maxTenantSlots = 6

// TenantConfig is one tenant's immutable configuration, read once at
// startup from a numbered environment slot.
type TenantConfig struct {
	Token string

	// ForceSubChannel gates access when non-empty; the slot values "" and
	// "0" both mean gating is disabled.
	ForceSubChannel string

	// PrivateGroupID is the restricted group whose admin uploads become
	// shared files.
	PrivateGroupID int64

	AdminIDs []int64

	// DatabaseURL is this tenant's own Postgres DSN.
	DatabaseURL string

	// OwnerID bypasses gating and is the only identity allowed to
	// broadcast. Zero means no owner is configured.
	OwnerID int64
}

type Config struct {
	Tenants []TenantConfig

	// LogChannel receives a forwarded copy of every inbound message when
	// configured.
	LogChannel string

	// WebhookBase is the public URL this service is reachable at.
	WebhookBase   string
	WebhookSecret string

	RedisAddr string
	Port      string
}

// Load reads the configuration using lookup (os.Getenv in production).
// Slots missing a required value are skipped with a warning so one
// misconfigured tenant never takes down the rest.
func Load(logger hclog.Logger, lookup func(string) string) *Config {
	cfg := &Config{
		LogChannel:    lookup("LOG_CHANNEL_ID"),
		WebhookBase:   lookup("CALLURL"),
		WebhookSecret: lookup("WEBHOOK_SECRET"),
		RedisAddr:     lookup("REDIS_URL"),
		Port:          lookup("PORT"),
	}
	if cfg.Port == "" {
		cfg.Port = "8081"
	}

	ownerID := parseID(lookup("OWNER_ID"))

	for i := 1; i <= maxTenantSlots; i++ {
		token := lookup(fmt.Sprintf("BOT_TOKEN_%d", i))
		groupID := parseID(lookup(fmt.Sprintf("PRIVATE_GROUP_ID_%d", i)))
		dbURL := lookup(fmt.Sprintf("DATABASE_URL_%d", i))

		if token == "" || groupID == 0 || dbURL == "" {
			if token != "" || dbURL != "" {
				logger.Warn("tenant slot missing required configuration, skipping", "slot", i)
			}
			continue
		}

		forceSub := lookup(fmt.Sprintf("FORCE_SUB_CHANNEL_%d", i))
		if forceSub == "0" {
			forceSub = ""
		}

		cfg.Tenants = append(cfg.Tenants, TenantConfig{
			Token:           token,
			ForceSubChannel: forceSub,
			PrivateGroupID:  groupID,
			AdminIDs:        parseAdminIDs(lookup(fmt.Sprintf("ADMINS_%d", i))),
			DatabaseURL:     dbURL,
			OwnerID:         ownerID,
		})
	}

	return cfg
}

// FromEnv loads the configuration from the process environment.
func FromEnv(logger hclog.Logger) *Config {
	return Load(logger, os.Getenv)
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseAdminIDs parses a comma-separated admin list, dropping entries that
// are not numeric ids.
func parseAdminIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		if id := parseID(part); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
