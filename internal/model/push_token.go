package model

import (
	"errors"
	"strings"
)

// PushToken is a device token registered for reminder notifications.
// Tokens are not tied to a user.
type PushToken struct {
	ID    int64  `db:"id" json:"id"`
	Token string `db:"token" json:"token"`
}

// RegisterPushTokenRequest is the request body for POST /push-tokens.
type RegisterPushTokenRequest struct {
	Token string `json:"token"`
}

// IsExpoToken reports whether the token should be delivered through Expo rather than FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

var (
	ErrEmptyPushToken = errors.New("push token is required")
)
