package handlers

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/campuslink/campuslink/database"
	"github.com/campuslink/campuslink/l10n"
)

func testFormatter() *l10n.Formatter {
	return l10n.New(zerolog.Nop())
}

// fakeStore is an in-memory Store for pipeline tests.
type fakeStore struct {
	students   []*database.Student
	botRole    string
	joinEvents []database.JoinEvent
	joinRoles  []string
	departure  *database.DepartureEvents
	rules      []database.RoleRule
	group      *database.GroupRoles
	members    map[string]bool
	affiliated *database.AffiliatedGuild

	deletedJoinRoles []string
	linked           map[string]string
	cleared          []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{members: map[string]bool{}, linked: map[string]string{}}
}

func (f *fakeStore) StudentByRoll(_ context.Context, roll string) (*database.Student, error) {
	for _, s := range f.students {
		if s.RollNumber == roll {
			return s, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) StudentByDiscordID(_ context.Context, id string) (*database.Student, error) {
	for _, s := range f.students {
		if s.DiscordID == id && id != "" {
			return s, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) SetLinkage(_ context.Context, roll, discordID string) error {
	f.linked[roll] = discordID
	for _, s := range f.students {
		if s.RollNumber == roll {
			s.DiscordID = discordID
			s.IsVerified = true
		}
	}
	return nil
}

func (f *fakeStore) ClearLinkage(_ context.Context, discordID string) error {
	f.cleared = append(f.cleared, discordID)
	for _, s := range f.students {
		if s.DiscordID == discordID {
			s.DiscordID = ""
		}
	}
	return nil
}

func (f *fakeStore) GuildBotRole(_ context.Context, _ string) (string, error) {
	return f.botRole, nil
}

func (f *fakeStore) JoinEvents(_ context.Context, _ string) ([]database.JoinEvent, error) {
	return f.joinEvents, nil
}

func (f *fakeStore) JoinRoleIDs(_ context.Context, _ string) ([]string, error) {
	return f.joinRoles, nil
}

func (f *fakeStore) DeleteJoinRoles(_ context.Context, ids []string) error {
	f.deletedJoinRoles = append(f.deletedJoinRoles, ids...)
	return nil
}

func (f *fakeStore) DepartureEvents(_ context.Context, _ string) (*database.DepartureEvents, error) {
	if f.departure == nil {
		return nil, database.ErrNotFound
	}
	return f.departure, nil
}

func (f *fakeStore) RoleRules(_ context.Context, _ string) ([]database.RoleRule, error) {
	return f.rules, nil
}

func (f *fakeStore) GroupRoles(_ context.Context, _ string) (*database.GroupRoles, error) {
	if f.group == nil {
		return nil, database.ErrNotFound
	}
	return f.group, nil
}

func (f *fakeStore) IsGroupMember(_ context.Context, _, discordID string) (bool, error) {
	return f.members[discordID], nil
}

func (f *fakeStore) AffiliatedGuild(_ context.Context, _ string) (*database.AffiliatedGuild, error) {
	if f.affiliated == nil {
		return nil, database.ErrNotFound
	}
	return f.affiliated, nil
}

// fakePlatform records every Discord call the pipelines make.
type fakePlatform struct {
	mu sync.Mutex

	guild *discordgo.Guild
	perms int64
	audit []*discordgo.AuditLogEntry

	added  map[string][]string
	sent   map[string][]string
	dms    map[string][]string
	kicked []string
}

func newFakePlatform(g *discordgo.Guild) *fakePlatform {
	return &fakePlatform{
		guild: g,
		added: map[string][]string{},
		sent:  map[string][]string{},
		dms:   map[string][]string{},
	}
}

func (f *fakePlatform) Guild(string) (*discordgo.Guild, error) {
	return f.guild, nil
}

func (f *fakePlatform) AddRoles(_, userID string, roleIDs ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added[userID] = append(f.added[userID], roleIDs...)
	return nil
}

func (f *fakePlatform) Send(channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[channelID] = append(f.sent[channelID], content)
	return nil
}

func (f *fakePlatform) DM(userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms[userID] = append(f.dms[userID], content)
	return nil
}

func (f *fakePlatform) Kick(_, userID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicked = append(f.kicked, userID)
	return nil
}

func (f *fakePlatform) AuditLog(_, _ string, _ int) ([]*discordgo.AuditLogEntry, error) {
	return f.audit, nil
}

func (f *fakePlatform) BotPermissions(string) (int64, error) {
	return f.perms, nil
}

func (f *fakePlatform) sentTo(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[channelID]...)
}

func (f *fakePlatform) rolesOf(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.added[userID]...)
}

// fakeMailer captures outgoing email.
type fakeMailer struct {
	mu      sync.Mutex
	to      []string
	subject []string
	body    []string
	fail    error
}

func (f *fakeMailer) Send(to, subject, htmlBody string) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.to = append(f.to, to)
	f.subject = append(f.subject, subject)
	f.body = append(f.body, htmlBody)
	return nil
}

func testGuild(roles map[string]string, channels ...string) *discordgo.Guild {
	g := &discordgo.Guild{ID: "guild-1", Name: "Test Guild"}
	for id, name := range roles {
		g.Roles = append(g.Roles, &discordgo.Role{ID: id, Name: name})
	}
	for _, id := range channels {
		g.Channels = append(g.Channels, &discordgo.Channel{ID: id, GuildID: g.ID})
	}
	return g
}

func testMember(userID string) *discordgo.Member {
	return &discordgo.Member{
		GuildID: "guild-1",
		User:    &discordgo.User{ID: userID, Username: "tester"},
	}
}
