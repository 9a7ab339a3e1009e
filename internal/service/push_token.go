package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"habitchallenge/internal/model"
	"habitchallenge/internal/repository"
)

// PushSender delivers one notification to a set of device tokens.
// ExpoPushClient and FCMClient implement it.
type PushSender interface {
	SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// PushTokenService stores device tokens and broadcasts reminders to them.
type PushTokenService struct {
	repo repository.PushTokenRepository
	expo PushSender
	fcm  PushSender // nil when Firebase is not configured
}

func NewPushTokenService(repo repository.PushTokenRepository, expo, fcm PushSender) *PushTokenService {
	return &PushTokenService{repo: repo, expo: expo, fcm: fcm}
}

// RegisterToken saves a token. Registering the same token again returns the
// stored row instead of failing.
func (s *PushTokenService) RegisterToken(ctx context.Context, token string) (*model.PushToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: %s", model.ErrValidation, model.ErrEmptyPushToken.Error())
	}

	saved, err := s.repo.Save(ctx, token)
	if err != nil {
		return nil, err
	}

	log.Printf("[PushTokenService] RegisterToken OK: id=%d", saved.ID)
	return saved, nil
}

// Broadcast sends body to every stored token and returns how many tokens were
// targeted. Expo tokens go through Expo; everything else goes through FCM.
func (s *PushTokenService) Broadcast(ctx context.Context, body string) (int, error) {
	tokens, err := s.repo.ListTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("list push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	var expoTokens, nativeTokens []string
	for _, t := range tokens {
		if model.IsExpoToken(t) {
			expoTokens = append(expoTokens, t)
		} else {
			nativeTokens = append(nativeTokens, t)
		}
	}

	sent := 0
	var firstErr error
	if len(expoTokens) > 0 && s.expo != nil {
		if err := s.expo.SendToTokens(ctx, expoTokens, "", body, nil); err != nil {
			log.Printf("[PushTokenService] Expo broadcast FAILED: tokens=%d err=%v", len(expoTokens), err)
			firstErr = err
		} else {
			sent += len(expoTokens)
		}
	}

	if len(nativeTokens) > 0 {
		if s.fcm == nil {
			log.Printf("[PushTokenService] Skipping %d non-Expo tokens: FCM not configured", len(nativeTokens))
		} else if err := s.fcm.SendToTokens(ctx, nativeTokens, "", body, nil); err != nil {
			log.Printf("[PushTokenService] FCM broadcast FAILED: tokens=%d err=%v", len(nativeTokens), err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			sent += len(nativeTokens)
		}
	}

	return sent, firstErr
}
