package entity

// ReadReceipt is the shared per-pair record of the last message each
// participant has read, keyed by the symmetric conversation key. LastRead
// maps a participant id to a message id. Both participants write to the same
// document, so updates must always be field-level merges of the caller's own
// entry, never whole-document overwrites.
type ReadReceipt struct {
	ConversationKey string            `json:"conversation_key"`
	LastRead        map[string]string `json:"last_read"`
}

// LastReadBy returns the id of the last message userID has read, or "" if
// that participant has never marked anything read.
func (r *ReadReceipt) LastReadBy(userID string) string {
	if r == nil || r.LastRead == nil {
		return ""
	}
	return r.LastRead[userID]
}
