package database

// Student - Enrollment record for one student
type Student struct {
	RollNumber string
	Name       string
	Email      string
	Section    string
	Batch      int
	HostelID   string
	// DiscordID is empty until the student links a Discord account.
	DiscordID  string
	IsVerified bool
}

// JoinEvent - Configured join/welcome notification for a guild
type JoinEvent struct {
	// EventTypes holds any of "join" (channel message) and "welcome" (DM).
	EventTypes []string
	ChannelID  string
	Message    string
}

// DepartureEvents - Configured leave/kick/ban notifications for a guild
type DepartureEvents struct {
	LeaveChannel string
	LeaveMessage string
	KickChannel  string
	KickMessage  string
	BanChannel   string
	BanMessage   string
}

// RoleRule - Field-based role rule for a guild. Rules whose Field is
// FallbackField carry the role granted when no student record exists.
type RoleRule struct {
	Field   string
	Value   string
	RoleIDs []string
}

// FallbackField marks the no-record fallback rule in the guild_role table.
const FallbackField = "!exists"

// GroupRoles - Cohort and guest roles of a club/society guild
type GroupRoles struct {
	FresherRole   string
	SophomoreRole string
	JuniorRole    string
	SeniorRole    string
	GuestRole     string
}

// Cohort returns the role id for a cohort name, if any.
func (g GroupRoles) Cohort(name string) string {
	switch name {
	case "fresher":
		return g.FresherRole
	case "sophomore":
		return g.SophomoreRole
	case "junior":
		return g.JuniorRole
	case "senior":
		return g.SeniorRole
	}
	return ""
}

// AffiliatedGuild - Settings of a guild affiliated with the college
type AffiliatedGuild struct {
	GuildID        string
	// Batch is the single admitted graduation year; 0 admits any batch.
	Batch          int
	GuestRoleID    string
	InfoChannelID  string
	CommandChannel string
}
