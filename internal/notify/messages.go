package notify

import "fmt"

// KeyCreated announces a newly issued access key. roleName is the
// human-readable role.
func KeyCreated(username, roleName, token string) Message {
	return Message{
		Title:       "New Key Created",
		Description: fmt.Sprintf("Username: **%s**\nRole: **%s**\nKey: `%s`", username, roleName, token),
	}
}

func KeyDeleted(username, roleName string, hadUser bool) Message {
	desc := fmt.Sprintf("Username: **%s**\nRole: **%s**", username, roleName)
	if hadUser {
		desc += "\nThe registered user was removed."
	}
	return Message{Title: "Key Deleted", Description: desc}
}

func KeyRedeemed(username, roleName string) Message {
	return Message{
		Title:       "Key Redeemed",
		Description: fmt.Sprintf("Username: **%s**\nRole: **%s**", username, roleName),
	}
}

func PhotoSectionAdded(title, description, actorID, roleName string) Message {
	return Message{
		Title:       "Photo Section Added",
		Description: fmt.Sprintf("Title: **%s**\nDescription: **%s**\nAdded by: **%s** (%s)", title, description, actorID, roleName),
	}
}
