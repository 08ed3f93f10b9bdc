package models

const (
	RoleMember = "member"
	RoleLeader = "leader"
	RoleAdmin  = "admin"
)

type User struct {
	ID          string `dynamodbav:"id" json:"id"`
	Email       string `dynamodbav:"email" json:"email"`
	DisplayName string `dynamodbav:"display_name" json:"display_name"`
	Role        string `dynamodbav:"role" json:"role"`
	FamilyID    string `dynamodbav:"family_id" json:"family_id"`
}

// IsLeader reports whether the user is copied on task notifications.
func (u User) IsLeader() bool {
	return u.Role == RoleLeader || u.Role == RoleAdmin
}

// Name is the display name, falling back to the email address.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
