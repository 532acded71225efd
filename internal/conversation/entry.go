package conversation

import "time"

type Role string

const (
	RoleUser   Role = "user"
	RoleBot    Role = "bot"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// Entry is one line of the transcript. Entries are never changed after
// they are appended.
type Entry struct {
	ID        string
	Text      string
	Role      Role
	Formatted bool
	At        time.Time
}

const (
	GenericErrorText  = "⚠️ Sorry, something went wrong. Please try again."
	CooldownOverText  = "You can now send messages again."
	rateLimitedPrefix = "⚠️ "
)
