package entity

import "errors"

// ErrMissingParticipant is returned when a conversation key is requested for
// an empty participant id. An empty id must never produce a usable key.
var ErrMissingParticipant = errors.New("missing participant id")

// ConversationKey derives the shared identifier for a pair of participants.
// The key is symmetric: ConversationKey(a, b) == ConversationKey(b, a).
// It is used to address state owned by the pair rather than by one side,
// such as the read receipt record.
func ConversationKey(a, b string) (string, error) {
	if a == "" || b == "" {
		return "", ErrMissingParticipant
	}
	if a < b {
		return a + b, nil
	}
	return b + a, nil
}
