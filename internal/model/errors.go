package model

import "errors"

// Error kinds shared across services. Specific sentinels live next to their
// entity and handlers map both with errors.Is.
var (
	// ErrValidation marks malformed input. Services wrap it with the field detail:
	// fmt.Errorf("%w: content is required", ErrValidation)
	ErrValidation = errors.New("validation failed")

	// ErrStorageUnavailable marks a failed round-trip to Postgres.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// User-facing messages returned by the HTTP layer.
const (
	MsgParticipationNotFound = "참여 정보를 찾을 수 없습니다"
	MsgDailyLimitReached     = "오늘은 이미 인증을 완료했습니다"
	MsgStorageUnavailable    = "일시적으로 요청을 처리할 수 없습니다"
)

// ValidationMessage strips the sentinel prefix so handlers can show the field detail.
func ValidationMessage(err error) string {
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
