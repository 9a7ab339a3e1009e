package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseAuthCountPerDay(t *testing.T) {
	tests := []struct {
		in      string
		want    AuthCountPerDay
		wantErr bool
	}{
		{"ONCE", AuthCountOnce, false},
		{"하루 1회", AuthCountOnce, false},
		{"MULTIPLE", AuthCountMultiple, false},
		{"once", "", true},
		{"", "", true},
		{"TWICE", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAuthCountPerDay(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("err = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseAuthCountPerDay(%q) = (%q, %v), want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestAuthCountPerDayNormalize(t *testing.T) {
	legacy := AuthCountPerDay("하루 1회")
	if legacy.Valid() {
		t.Error("legacy spelling should not be Valid before Normalize")
	}
	if got := legacy.Normalize(); got != AuthCountOnce || !got.Valid() {
		t.Errorf("Normalize = %q, want ONCE", got)
	}
	if got := AuthCountPerDay("WEIRD").Normalize(); got != "WEIRD" {
		t.Errorf("unknown value changed by Normalize: %q", got)
	}
}

func TestEnumValid(t *testing.T) {
	if !FrequencyNPerWeek.Valid() || Frequency("HOURLY").Valid() {
		t.Error("Frequency.Valid mismatch")
	}
	if !ParticipationFailed.Valid() || ParticipationStatus("PAUSED").Valid() {
		t.Error("ParticipationStatus.Valid mismatch")
	}
	if !RoleAdmin.Valid() || Role("root").Valid() {
		t.Error("Role.Valid mismatch")
	}
}

func TestParseChallengeFilter(t *testing.T) {
	for in, want := range map[string]ChallengeFilter{
		"":           ChallengeFilterAll,
		"all":        ChallengeFilterAll,
		"recruiting": ChallengeFilterRecruiting,
		"upcoming":   ChallengeFilterUpcoming,
		"ended":      ChallengeFilterEnded,
	} {
		got, err := ParseChallengeFilter(in)
		if err != nil || got != want {
			t.Errorf("ParseChallengeFilter(%q) = (%q, %v), want %q", in, got, err, want)
		}
	}
	if _, err := ParseChallengeFilter("soon"); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown filter err = %v", err)
	}
}

func TestValidationMessage(t *testing.T) {
	err := fmt.Errorf("%w: content is required", ErrValidation)
	if got := ValidationMessage(err); got != "content is required" {
		t.Errorf("ValidationMessage = %q", got)
	}
	if got := ValidationMessage(ErrValidation); got != "validation failed" {
		t.Errorf("bare sentinel = %q", got)
	}
}

func TestIsExpoToken(t *testing.T) {
	if !IsExpoToken("ExponentPushToken[abc]") || !IsExpoToken("ExpoPushToken[abc]") {
		t.Error("expo token not recognized")
	}
	if IsExpoToken("fcm-native-token") {
		t.Error("native token treated as expo")
	}
}
