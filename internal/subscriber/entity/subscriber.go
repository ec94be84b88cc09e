package entity

// Subscriber is one notification subscription. Subscriptions are append only.
type Subscriber struct {
	ID        string `json:"-"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt"`
}
