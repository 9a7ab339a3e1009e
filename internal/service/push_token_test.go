package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"habitchallenge/internal/model"
)

type mockPushTokenRepository struct {
	saveFn   func(ctx context.Context, token string) (*model.PushToken, error)
	tokens   []string
	listErr  error
	saveArgs []string
}

func (m *mockPushTokenRepository) Save(ctx context.Context, token string) (*model.PushToken, error) {
	m.saveArgs = append(m.saveArgs, token)
	if m.saveFn != nil {
		return m.saveFn(ctx, token)
	}
	return &model.PushToken{ID: 1, Token: token}, nil
}

func (m *mockPushTokenRepository) ListTokens(ctx context.Context) ([]string, error) {
	return m.tokens, m.listErr
}

func (m *mockPushTokenRepository) Delete(ctx context.Context, token string) error {
	return nil
}

type mockPushSender struct {
	calls [][]string
	err   error
}

func (m *mockPushSender) SendToTokens(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	m.calls = append(m.calls, tokens)
	return m.err
}

func TestPushTokenService_RegisterToken(t *testing.T) {
	t.Run("trims and saves", func(t *testing.T) {
		repo := &mockPushTokenRepository{}
		svc := NewPushTokenService(repo, nil, nil)

		tok, err := svc.RegisterToken(context.Background(), "  ExponentPushToken[abc] ")
		if err != nil {
			t.Fatalf("RegisterToken failed: %v", err)
		}
		if tok.Token != "ExponentPushToken[abc]" || repo.saveArgs[0] != "ExponentPushToken[abc]" {
			t.Errorf("saved %q", repo.saveArgs)
		}
	})

	t.Run("empty token", func(t *testing.T) {
		repo := &mockPushTokenRepository{}
		svc := NewPushTokenService(repo, nil, nil)

		if _, err := svc.RegisterToken(context.Background(), "   "); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("err = %v, want ErrValidation", err)
		}
		if len(repo.saveArgs) != 0 {
			t.Error("empty token reached storage")
		}
	})
}

func TestPushTokenService_Broadcast(t *testing.T) {
	tokens := []string{"ExponentPushToken[a]", "fcm-token-1", "ExpoPushToken[b]", "fcm-token-2"}

	t.Run("routes by token format", func(t *testing.T) {
		expo, fcm := &mockPushSender{}, &mockPushSender{}
		svc := NewPushTokenService(&mockPushTokenRepository{tokens: tokens}, expo, fcm)

		sent, err := svc.Broadcast(context.Background(), "hi")
		if err != nil {
			t.Fatalf("Broadcast failed: %v", err)
		}
		if sent != 4 {
			t.Errorf("sent = %d, want 4", sent)
		}
		if len(expo.calls) != 1 || len(expo.calls[0]) != 2 {
			t.Errorf("expo calls = %v", expo.calls)
		}
		if len(fcm.calls) != 1 || len(fcm.calls[0]) != 2 {
			t.Errorf("fcm calls = %v", fcm.calls)
		}
	})

	t.Run("skips native tokens without FCM", func(t *testing.T) {
		expo := &mockPushSender{}
		svc := NewPushTokenService(&mockPushTokenRepository{tokens: tokens}, expo, nil)

		sent, err := svc.Broadcast(context.Background(), "hi")
		if err != nil {
			t.Fatalf("Broadcast failed: %v", err)
		}
		if sent != 2 {
			t.Errorf("sent = %d, want 2", sent)
		}
	})

	t.Run("expo failure still tries FCM", func(t *testing.T) {
		expo := &mockPushSender{err: errors.New("expo down")}
		fcm := &mockPushSender{}
		svc := NewPushTokenService(&mockPushTokenRepository{tokens: tokens}, expo, fcm)

		sent, err := svc.Broadcast(context.Background(), "hi")
		if err == nil {
			t.Fatal("expected the expo error")
		}
		if sent != 2 || len(fcm.calls) != 1 {
			t.Errorf("sent = %d fcm calls = %d", sent, len(fcm.calls))
		}
	})

	t.Run("no tokens", func(t *testing.T) {
		expo := &mockPushSender{}
		svc := NewPushTokenService(&mockPushTokenRepository{}, expo, nil)

		sent, err := svc.Broadcast(context.Background(), "hi")
		if err != nil || sent != 0 || len(expo.calls) != 0 {
			t.Errorf("sent=%d err=%v calls=%d", sent, err, len(expo.calls))
		}
	})
}

func TestExpoPushClient_SendToTokens(t *testing.T) {
	var received []ExpoPushMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg ExpoPushMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode: %v", err)
		}
		received = append(received, msg)

		resp := ExpoPushResponse{}
		for range msg.To {
			resp.Data = append(resp.Data, ExpoPushTicket{Status: "ok"})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	tokens := make([]string, 0, 151)
	for i := 0; i < 150; i++ {
		tokens = append(tokens, "ExponentPushToken[x]")
	}
	tokens = append(tokens, "not-expo")

	client := NewExpoPushClientWithEndpoint(srv.URL)
	if err := client.SendToTokens(context.Background(), tokens, "", "오늘의 챌린지를 잊지 마세요! 💪", nil); err != nil {
		t.Fatalf("SendToTokens failed: %v", err)
	}

	if len(received) != 2 {
		t.Fatalf("requests = %d, want 2 batches", len(received))
	}
	if len(received[0].To) != 100 || len(received[1].To) != 50 {
		t.Errorf("batch sizes = %d, %d", len(received[0].To), len(received[1].To))
	}
	if received[0].Body != "오늘의 챌린지를 잊지 마세요! 💪" || received[0].Sound != "default" {
		t.Errorf("message = %+v", received[0])
	}
}

func TestExpoPushClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewExpoPushClientWithEndpoint(srv.URL)
	if err := client.SendToTokens(context.Background(), []string{"ExponentPushToken[a]"}, "", "hi", nil); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
