package entity

import "time"

type Message struct {
	ID                 string    `json:"id" firestore:"id"`
	DocumentID         string    `json:"document_id" firestore:"documentId"`
	FromID             string    `json:"from_id" firestore:"fromId"`
	ToID               string    `json:"to_id" firestore:"toId"`
	Text               string    `json:"text" firestore:"text"`
	SenderName         string    `json:"sender_name" firestore:"senderName"`
	SenderEmail        string    `json:"sender_email" firestore:"senderEmail"`
	SenderAvatarURL    string    `json:"sender_avatar_url,omitempty" firestore:"senderAvatarUrl,omitempty"`
	RecipientName      string    `json:"recipient_name" firestore:"recipientName"`
	RecipientEmail     string    `json:"recipient_email" firestore:"recipientEmail"`
	RecipientAvatarURL string    `json:"recipient_avatar_url,omitempty" firestore:"recipientAvatarUrl,omitempty"`
	Unread             bool      `json:"unread" firestore:"unread"`
	CreatedAt          time.Time `json:"created_at" firestore:"createdAt"`
}

// DocID is the reconciliation key for a message. It equals the message id and
// is also the Firestore document id in both participants' partitions.
func (m *Message) DocID() string {
	return m.DocumentID
}

func (m *Message) SortTime() time.Time {
	return m.CreatedAt
}

// Mirror returns the recipient-oriented copy of the message: the sender and
// recipient display snapshots are swapped so that each partition's copy
// describes the other side, and the copy starts out unread. The from/to ids
// keep their direction so either copy can tell who authored the message.
func (m *Message) Mirror() *Message {
	mirror := *m
	mirror.SenderName, mirror.RecipientName = m.RecipientName, m.SenderName
	mirror.SenderEmail, mirror.RecipientEmail = m.RecipientEmail, m.SenderEmail
	mirror.SenderAvatarURL, mirror.RecipientAvatarURL = m.RecipientAvatarURL, m.SenderAvatarURL
	mirror.Unread = true
	return &mirror
}
