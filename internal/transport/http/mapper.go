package http

import (
	"time"

	"github.com/samber/lo"

	"github.com/vovakirdan/relaychat-server/internal/core"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Presence string `json:"presence"`
}

// ServerResponse represents a channel in API responses.
type ServerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	Members int    `json:"members"`
}

// MessageResponse represents a retained channel message in API responses.
type MessageResponse struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func toUserResponses(users []core.UserInfo) []UserResponse {
	return lo.Map(users, func(u core.UserInfo, _ int) UserResponse {
		return UserResponse{ID: u.ID, Name: u.Name, Presence: u.Presence.String()}
	})
}

func toServerResponses(channels []core.ChannelInfo) []ServerResponse {
	return lo.Map(channels, func(c core.ChannelInfo, _ int) ServerResponse {
		return ServerResponse{ID: c.ID, Name: c.Name, OwnerID: c.OwnerID, Members: c.Members}
	})
}

func toMessageResponses(msgs []core.Message) []MessageResponse {
	return lo.Map(msgs, func(m core.Message, _ int) MessageResponse {
		return MessageResponse{
			ID:        m.ID,
			From:      m.From,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		}
	})
}
