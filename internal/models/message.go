package models

// Role is the author of a prompt message sent to the generation service.
type Role string

const (
	RoleUser   Role = "user"
	RoleSystem Role = "system"
)

// Message is one text turn of a generation prompt.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
