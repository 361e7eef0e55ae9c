// Package settings is the bot's own configuration store: per-guild knobs that
// are not part of the college identity data, kept in a local bbolt file with
// JSON-encoded values.
package settings

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const guildBucket = "guilds"

// GuildSettings - Stored record for one guild
type GuildSettings struct {
	ID     string
	Prefix string
	Locale string
	// VerifyChannelID/VerifyMessageID point at the posted verification
	// button message, when one exists.
	VerifyChannelID string
	VerifyMessageID string
}

// Store - Settings store handle
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the settings file at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(guildBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Guild returns the settings for a guild, inserting a default record the
// first time a guild is seen.
func (s *Store) Guild(gid string) (gs GuildSettings, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(guildBucket)).Get([]byte(gid))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &gs)
	})
	if err != nil {
		return gs, err
	}
	if gs.ID == "" {
		gs.ID = gid
		err = s.SetGuild(gs)
	}
	return gs, err
}

// SetGuild updates the stored settings of a guild.
func (s *Store) SetGuild(gs GuildSettings) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(gs)
		if err != nil {
			return err
		}
		return tx.Bucket([]byte(guildBucket)).Put([]byte(gs.ID), bts)
	})
}

// Close closes the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}
