package model

import webpush "github.com/SherClockHolmes/webpush-go"

// PushSubscriptionRecord is a browser-style push subscription bound to a user.
// Endpoint and Keys use the standard web push JSON shape.
type PushSubscriptionRecord struct {
	Endpoint string       `json:"endpoint"`
	Keys     webpush.Keys `json:"keys"`
	UserID   string       `json:"userId"`
}

// Subscription returns the record as a webpush subscription.
func (r PushSubscriptionRecord) Subscription() *webpush.Subscription {
	return &webpush.Subscription{Endpoint: r.Endpoint, Keys: r.Keys}
}

// NewPushSubscriptionRecord binds a subscription to userID.
func NewPushSubscriptionRecord(sub *webpush.Subscription, userID string) PushSubscriptionRecord {
	return PushSubscriptionRecord{
		Endpoint: sub.Endpoint,
		Keys:     sub.Keys,
		UserID:   userID,
	}
}
