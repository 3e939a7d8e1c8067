package model

type Role string

const (
	RoleUser      = Role("user")
	RoleAssistant = Role("assistant")
	RoleSystem    = Role("system")
)

func ParseRole(s string) (Role, bool) {
	switch s {
	case "user":
		return RoleUser, true
	case "assistant":
		return RoleAssistant, true
	case "system":
		return RoleSystem, true
	default:
		return "", false
	}
}

type Status string

const (
	StatusIdle      = Status("idle")
	StatusSubmitted = Status("submitted")
)
