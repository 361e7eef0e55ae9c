package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/campuslink/campuslink/database"
)

func newOnboarder(store Store, p Platform) *Onboarder {
	return NewOnboarder(store, nil, testFormatter(), p, newMemberLocks(), zerolog.Nop())
}

func joinEvent(userID string) *discordgo.GuildMemberAdd {
	return &discordgo.GuildMemberAdd{Member: testMember(userID)}
}

func TestMemberJoinBotShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.botRole = "bot-role"
	store.joinEvents = []database.JoinEvent{{EventTypes: []string{"join"}, ChannelID: "general"}}
	p := newFakePlatform(testGuild(map[string]string{"bot-role": "Bots"}, "general"))

	e := joinEvent("bot-1")
	e.User.Bot = true
	newOnboarder(store, p).MemberJoin(context.Background(), e)

	assert.Equal(t, []string{"bot-role"}, p.rolesOf("bot-1"))
	assert.Empty(t, p.sentTo("general"), "bots never trigger join events")
}

func TestMemberJoinEventsAndRoles(t *testing.T) {
	store := newFakeStore()
	store.joinEvents = []database.JoinEvent{
		{EventTypes: []string{"join"}, ChannelID: "general", Message: "Hey {$user}, welcome to {$guild}!"},
		{EventTypes: []string{"welcome"}, Message: "Glad to have you, {$user}."},
		{EventTypes: []string{"join"}, ChannelID: "deleted-channel", Message: "never lands"},
	}
	store.joinRoles = []string{"member-role", "stale-role", "member-role"}
	p := newFakePlatform(testGuild(map[string]string{"member-role": "Member"}, "general"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"Hey <@u1>, welcome to Test Guild!"}, p.sentTo("general"))
	assert.Equal(t, []string{"Glad to have you, <@u1>."}, p.dms["u1"])
	assert.Empty(t, p.sentTo("deleted-channel"))
	assert.Equal(t, []string{"member-role"}, p.rolesOf("u1"), "configured duplicates are granted once")
	assert.Equal(t, []string{"stale-role"}, store.deletedJoinRoles)
}

func TestMemberJoinEventDefaultMessage(t *testing.T) {
	store := newFakeStore()
	store.joinEvents = []database.JoinEvent{{EventTypes: []string{"join"}, ChannelID: "general"}}
	p := newFakePlatform(testGuild(nil, "general"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"Welcome to the server, <@u1>!"}, p.sentTo("general"))
}

func TestMemberJoinClubMemberGetsCohortRole(t *testing.T) {
	store := newFakeStore()
	store.group = &database.GroupRoles{
		FresherRole:   "cohort-role",
		SophomoreRole: "cohort-role",
		JuniorRole:    "cohort-role",
		SeniorRole:    "cohort-role",
		GuestRole:     "guest-role",
	}
	store.members["u1"] = true
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Batch:      time.Now().UTC().Year() + 2,
		DiscordID:  "u1",
	}}
	// An affiliated-guild row exists too; the club path must win.
	store.affiliated = &database.AffiliatedGuild{GuildID: "guild-1", GuestRoleID: "guest-role"}
	p := newFakePlatform(testGuild(map[string]string{"cohort-role": "students", "guest-role": "guests"}))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"cohort-role"}, p.rolesOf("u1"))
}

func TestMemberJoinClubNonMemberGetsGuestRole(t *testing.T) {
	store := newFakeStore()
	store.group = &database.GroupRoles{FresherRole: "cohort-role", GuestRole: "guest-role"}
	p := newFakePlatform(testGuild(map[string]string{"cohort-role": "students", "guest-role": "guests"}))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"guest-role"}, p.rolesOf("u1"))
}

func TestMemberJoinRoleRules(t *testing.T) {
	store := newFakeStore()
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Section:    "CS-A7",
		Batch:      2025,
		DiscordID:  "u1",
	}}
	store.rules = []database.RoleRule{
		{Field: "batch", Value: "2025", RoleIDs: []string{"r-batch", "r-shared"}},
		{Field: "section", Value: "CS-A7", RoleIDs: []string{"r-shared", "r-section", "r-gone"}},
		{Field: "batch", Value: "2024", RoleIDs: []string{"r-other"}},
	}
	store.affiliated = &database.AffiliatedGuild{GuildID: "guild-1", GuestRoleID: "r-guest", InfoChannelID: "info"}
	p := newFakePlatform(testGuild(map[string]string{
		"r-batch": "2025", "r-shared": "core", "r-section": "CS-A7", "r-other": "2024", "r-guest": "guests",
	}, "info"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"r-batch", "r-shared", "r-section"}, p.rolesOf("u1"),
		"matched rule roles, deduplicated, stale pruned, affiliated path skipped")
	assert.Empty(t, p.sentTo("info"))
}

func TestMemberJoinFallbackRule(t *testing.T) {
	store := newFakeStore()
	store.rules = []database.RoleRule{
		{Field: "batch", Value: "2025", RoleIDs: []string{"r-batch"}},
		{Field: database.FallbackField, RoleIDs: []string{"r-guest", "r-guest"}},
	}
	p := newFakePlatform(testGuild(map[string]string{"r-batch": "2025", "r-guest": "guests"}))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("stranger"))

	assert.Equal(t, []string{"r-guest"}, p.rolesOf("stranger"), "configured duplicates are granted once")
}

func TestMemberJoinAffiliatedVerifiedAnyBatch(t *testing.T) {
	store := newFakeStore()
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Section:    "CS-A7",
		Batch:      2025,
		HostelID:   "GH1",
		DiscordID:  "u1",
		IsVerified: true,
	}}
	store.affiliated = &database.AffiliatedGuild{
		GuildID:        "guild-1",
		GuestRoleID:    "r-guest",
		InfoChannelID:  "info",
		CommandChannel: "cmds",
	}
	p := newFakePlatform(testGuild(map[string]string{
		"r-dept": "CS", "r-batch": "2025", "r-hostel": "GH1", "r-guest": "guests",
	}, "info"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.ElementsMatch(t, []string{"r-dept", "r-batch", "r-hostel"}, p.rolesOf("u1"))
	assert.Empty(t, p.sentTo("info"), "verified members get no instructions")
}

func TestMemberJoinAffiliatedUnverifiedGetsGuestAndInstructions(t *testing.T) {
	store := newFakeStore()
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Section:    "CS-A7",
		Batch:      2025,
		DiscordID:  "u1",
	}}
	store.affiliated = &database.AffiliatedGuild{
		GuildID:        "guild-1",
		GuestRoleID:    "r-guest",
		InfoChannelID:  "info",
		CommandChannel: "cmds",
	}
	p := newFakePlatform(testGuild(map[string]string{"r-guest": "guests"}, "info"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"r-guest"}, p.rolesOf("u1"))
	if assert.Len(t, p.sentTo("info"), 1) {
		msg := p.sentTo("info")[0]
		assert.Contains(t, msg, "<@u1>")
		assert.Contains(t, msg, "<#cmds>")
	}
}

func TestMemberJoinAffiliatedBatchMatch(t *testing.T) {
	store := newFakeStore()
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Section:    "CS-A7",
		Batch:      2025,
		HostelID:   "GH1",
		DiscordID:  "u1",
	}}
	store.affiliated = &database.AffiliatedGuild{GuildID: "guild-1", Batch: 2025, GuestRoleID: "r-guest", InfoChannelID: "info"}
	p := newFakePlatform(testGuild(map[string]string{
		"r-section": "CS-A7", "r-sub": "CS-07", "r-hostel": "GH1", "r-guest": "guests",
	}, "info"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.ElementsMatch(t, []string{"r-section", "r-sub", "r-hostel"}, p.rolesOf("u1"))
	assert.Empty(t, p.sentTo("info"))
	assert.Empty(t, p.kicked)
}

func TestMemberJoinAffiliatedWrongBatchRemoved(t *testing.T) {
	store := newFakeStore()
	store.students = []*database.Student{{
		RollNumber: "12022005",
		Batch:      2025,
		DiscordID:  "u1",
	}}
	store.affiliated = &database.AffiliatedGuild{GuildID: "guild-1", Batch: 2024, GuestRoleID: "r-guest"}
	p := newFakePlatform(testGuild(map[string]string{"r-guest": "guests"}))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("u1"))

	assert.Equal(t, []string{"u1"}, p.kicked)
	assert.Len(t, p.dms["u1"], 1)
	assert.Empty(t, p.rolesOf("u1"))
}

func TestMemberJoinAffiliatedNoRecordGetsGuest(t *testing.T) {
	store := newFakeStore()
	store.affiliated = &database.AffiliatedGuild{
		GuildID:        "guild-1",
		GuestRoleID:    "r-guest",
		InfoChannelID:  "info",
		CommandChannel: "cmds",
	}
	p := newFakePlatform(testGuild(map[string]string{"r-guest": "guests"}, "info"))

	newOnboarder(store, p).MemberJoin(context.Background(), joinEvent("stranger"))

	assert.Equal(t, []string{"r-guest"}, p.rolesOf("stranger"))
	assert.Len(t, p.sentTo("info"), 1)
}

func TestApplyVerifiedRoles(t *testing.T) {
	store := newFakeStore()
	store.rules = []database.RoleRule{
		{Field: "hostel_id", Value: "GH1", RoleIDs: []string{"r-hosteller"}},
	}
	store.affiliated = &database.AffiliatedGuild{GuildID: "guild-1"}
	p := newFakePlatform(testGuild(map[string]string{
		"r-hosteller": "hostellers", "r-dept": "CS", "r-batch": "2025", "r-hostel": "GH1",
	}))

	student := &database.Student{
		RollNumber: "12022005",
		Section:    "CS-A7",
		Batch:      2025,
		HostelID:   "GH1",
		DiscordID:  "u1",
		IsVerified: true,
	}
	newOnboarder(store, p).ApplyVerifiedRoles(context.Background(), p.guild, "u1", student)

	assert.ElementsMatch(t, []string{"r-hosteller", "r-dept", "r-batch", "r-hostel"}, p.rolesOf("u1"))
}
