package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/campuslink/campuslink/config"
	"github.com/campuslink/campuslink/settings"
)

// cohortNames maps a year of study to its cohort role name.
var cohortNames = map[int]string{
	1: "fresher",
	2: "sophomore",
	3: "junior",
	4: "senior",
}

// cohortName derives the cohort of a student from the graduation year. The
// second return is false for batches outside the four years of study.
func cohortName(batch int, now time.Time) (string, bool) {
	passing := time.Date(batch, time.June, 1, 0, 0, 0, 0, time.UTC)
	days := int(passing.Sub(now).Hours() / 24)
	if days < 0 {
		return "", false
	}
	name, ok := cohortNames[4-days/365]
	return name, ok
}

// sectionCode derives the batch-specific sub-section role name from a
// section: the fourth character is dropped and the remainder zero-padded to
// two digits.
func sectionCode(section string) string {
	if len(section) < 3 {
		return section
	}
	suffix := ""
	if len(section) > 4 {
		suffix = section[4:]
	}
	if len(suffix) < 2 {
		suffix = strings.Repeat("0", 2-len(suffix)) + suffix
	}
	return section[:3] + suffix
}

// sectionPrefix is the department part of a section name.
func sectionPrefix(section string) string {
	if len(section) < 2 {
		return section
	}
	return section[:2]
}

// dedupe drops empty and repeated ids, preserving order. The input slice is
// left untouched.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func findRole(g *discordgo.Guild, id string) *discordgo.Role {
	if id == "" {
		return nil
	}
	for _, r := range g.Roles {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func findChannel(g *discordgo.Guild, id string) *discordgo.Channel {
	if id == "" {
		return nil
	}
	for _, c := range g.Channels {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// pruneRoles splits ids into those present in the guild and those stale.
func pruneRoles(g *discordgo.Guild, ids []string) (valid, broken []string) {
	for _, id := range ids {
		if findRole(g, id) != nil {
			valid = append(valid, id)
		} else {
			broken = append(broken, id)
		}
	}
	return valid, broken
}

// rolesByName resolves role names to ids; names without a role are skipped.
func rolesByName(g *discordgo.Guild, names ...string) []string {
	var ids []string
	for _, name := range names {
		for _, r := range g.Roles {
			if r.Name == name {
				ids = append(ids, r.ID)
				break
			}
		}
	}
	return ids
}

func userMention(id string) string {
	return "<@" + id + ">"
}

func channelMention(id string) string {
	return "<#" + id + ">"
}

// localeFor returns the guild's configured locale, defaulting when the guild
// is unknown or the settings store is unavailable.
func localeFor(s *settings.Store, guildID string) string {
	if s == nil || guildID == "" {
		return config.DefaultLocale
	}
	gs, err := s.Guild(guildID)
	if err != nil || gs.Locale == "" {
		return config.DefaultLocale
	}
	return gs.Locale
}

// memberLocks serializes onboarding/offboarding for the same member; event
// delivery gives no ordering guarantee between a join and a rejoin. Entries
// are reference counted and dropped once the last holder unlocks, so the map
// only holds members with an event in flight.
type memberLocks struct {
	mu    sync.Mutex
	locks map[string]*memberLock
}

type memberLock struct {
	sync.Mutex
	refs int
}

func newMemberLocks() *memberLocks {
	return &memberLocks{locks: make(map[string]*memberLock)}
}

// lock acquires the per-member mutex and returns its unlock func.
func (m *memberLocks) lock(guildID, userID string) func() {
	key := guildID + ":" + userID

	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memberLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
