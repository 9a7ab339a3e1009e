package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMClient delivers reminders to native device tokens through Firebase Cloud Messaging.
//
// Flow:
//  1. NewFCMClient builds a firebase.App from the service account fields in
//     config; no credentials file is read from disk.
//  2. SendToTokens splits the recipients into multicast batches of
//     fcmBatchSize, the most FCM accepts in one request.
//  3. Each batch goes out with SendEachForMulticast. A transport error stops
//     the remaining batches; per-token failures (unregistered or invalid
//     tokens) are only logged and never fail the send.
//
// The server only constructs an FCMClient when all three FIREBASE_* settings
// are present. Without it, reminders still go to Expo tokens.
type FCMClient struct {
	client *messaging.Client
}

// fcmBatchSize is the multicast recipient limit.
const fcmBatchSize = 500

// NewFCMClient builds a client from service account fields. privateKey may
// carry literal "\n" sequences as it does when read from a .env file.
func NewFCMClient(ctx context.Context, projectID, clientEmail, privateKey string) (*FCMClient, error) {
	privateKey = strings.ReplaceAll(privateKey, "\\n", "\n")

	credsJSON := fmt.Sprintf(`{
		"type": "service_account",
		"project_id": %q,
		"private_key": %q,
		"client_email": %q,
		"token_uri": "https://oauth2.googleapis.com/token"
	}`, projectID, privateKey, clientEmail)

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, option.WithCredentialsJSON([]byte(credsJSON)))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("get messaging client: %w", err)
	}

	log.Printf("[FCM] Initialized for project: %s", projectID)
	return &FCMClient{client: client}, nil
}

// SendToTokens sends one notification to every token. Android gets high
// priority and both platforms play the default sound.
func (c *FCMClient) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	for start := 0; start < len(tokens); start += fcmBatchSize {
		end := min(start+fcmBatchSize, len(tokens))
		message := &messaging.MulticastMessage{
			Tokens: tokens[start:end],
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
			Android: &messaging.AndroidConfig{
				Priority:     "high",
				Notification: &messaging.AndroidNotification{Sound: "default"},
			},
			APNS: &messaging.APNSConfig{
				Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
			},
		}

		response, err := c.client.SendEachForMulticast(ctx, message)
		if err != nil {
			return fmt.Errorf("send multicast: %w", err)
		}

		log.Printf("[FCM] Sent to %d tokens: %d success, %d failure",
			len(message.Tokens), response.SuccessCount, response.FailureCount)
		for i, resp := range response.Responses {
			if !resp.Success {
				log.Printf("[FCM] Token %d failed: %v", start+i, resp.Error)
			}
		}
	}
	return nil
}
