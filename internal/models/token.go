package models

const (
	ActionConfirm = "confirm"
	ActionDecline = "decline"
)

// ActionToken lets the holder confirm or decline a task without signing in.
// Tokens are never deleted; a redeemed token keeps Used=true.
type ActionToken struct {
	Token     string `dynamodbav:"token" json:"token"`
	TaskID    string `dynamodbav:"task_id" json:"task_id"`
	UserID    string `dynamodbav:"user_id" json:"user_id"`
	UserEmail string `dynamodbav:"user_email" json:"user_email"`
	Action    string `dynamodbav:"action" json:"action"`
	Used      bool   `dynamodbav:"used" json:"used"`
	CreatedAt int64  `dynamodbav:"created_at" json:"created_at"`
	UsedAt    int64  `dynamodbav:"used_at" json:"used_at"`
	ExpiresAt int64  `dynamodbav:"expires_at" json:"expires_at"`
}

// TokenPair is the confirm/decline pair minted for one assignment.
type TokenPair struct {
	Confirm string `json:"confirm_token"`
	Decline string `json:"decline_token"`
}
