package entity

import "time"

// RecentMessage is one row in a user's conversation inbox: at most one row
// per partner, replaced on every send or receive in that conversation. The
// Firestore document id is the partner id, which is what gives upserts their
// replace semantics.
type RecentMessage struct {
	DocumentID       string    `json:"document_id" firestore:"documentId"`
	PartnerID        string    `json:"partner_id" firestore:"partnerId"`
	PartnerName      string    `json:"partner_name" firestore:"partnerName"`
	PartnerEmail     string    `json:"partner_email" firestore:"partnerEmail"`
	PartnerAvatarURL string    `json:"partner_avatar_url,omitempty" firestore:"partnerAvatarUrl,omitempty"`
	LastMessageID    string    `json:"last_message_id" firestore:"lastMessageId"`
	LastText         string    `json:"last_text" firestore:"lastText"`
	Unread           bool      `json:"unread" firestore:"unread"`
	CreatedAt        time.Time `json:"created_at" firestore:"createdAt"`
}

func (r *RecentMessage) DocID() string {
	return r.DocumentID
}

func (r *RecentMessage) SortTime() time.Time {
	return r.CreatedAt
}
