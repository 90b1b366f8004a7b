// Package bus defines the publish/subscribe fabric distributing
// cache-invalidation and live-update events between running instances.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Channel names consumed by this core.
const (
	ChannelUserPrivileges = "user-privileges"
	ChannelMapStatus      = "map-status"
)

// Channel names published by this core.
const (
	ChannelUserStatus        = "user-status"
	ChannelUserActivity      = "user-activity"
	ChannelUserStats         = "user-stats"
	ChannelSendPublicMessage = "send-public-message"
)

// Handler processes one message payload. Handlers run sequentially on the
// listener's own scheduling context; delivery is FIFO per channel only.
type Handler func(ctx context.Context, payload []byte)

// Bus is the invalidation fabric. Subscribe must be called before Listen.
type Bus interface {
	// Publish marshals v as JSON and broadcasts it on channel.
	Publish(ctx context.Context, channel string, v any) error

	// Subscribe registers a handler for channel.
	Subscribe(channel string, h Handler)

	// Listen runs the subscriber loop until ctx is canceled.
	Listen(ctx context.Context) error

	// Close releases the underlying transport.
	Close() error
}

// PrivilegeUpdate is the user-privileges message shape.
type PrivilegeUpdate struct {
	ID         int64 `json:"id"`
	Privileges int32 `json:"privileges"`
}

// MapStatusUpdate is the map-status message shape.
type MapStatusUpdate struct {
	MD5       string `json:"md5"`
	NewStatus int    `json:"new_status"`
}

// StatsRefresh is the user-stats message shape.
type StatsRefresh struct {
	ID   int64 `json:"id"`
	Mode int   `json:"mode"`
}

// StatusUpdate is the user-status message shape; receivers reload the
// user's live status by id.
type StatusUpdate struct {
	ID int64 `json:"id"`
}

// ActivityUpdate is the user-activity message shape.
type ActivityUpdate struct {
	ID       int64 `json:"id"`
	Activity int64 `json:"activity"`
}

// PublicMessage is the send-public-message message shape.
type PublicMessage struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func marshal(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal bus payload: %w", err)
	}
	return payload, nil
}
