// Package otp generates verification codes and routes channel messages to
// the in-flight verification attempt waiting for them. Challenges live in
// memory only; a restart abandons every pending attempt.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
)

// ErrChallengeActive is returned when a responder already has a pending
// challenge in the same channel.
var ErrChallengeActive = errors.New("a challenge is already active for this responder")

// Generate returns a random code of the given length drawn from charset.
// Codes carry no uniqueness guarantee.
func Generate(length int, charset string) (string, error) {
	if length < 1 || len(charset) == 0 {
		return "", fmt.Errorf("invalid code parameters")
	}
	code := make([]byte, length)
	max := big.NewInt(int64(len(charset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}
		code[i] = charset[n.Int64()]
	}
	return string(code), nil
}

// Challenge is one pending verification attempt: a code emailed to a student
// and the (responder, channel) pair its answer must come from.
type Challenge struct {
	ID         string
	Code       string
	RollNumber string
	UserID     string
	ChannelID  string

	responses chan string
}

// Await suspends until the responder's next message in the designated
// channel, or until ctx is done.
func (c *Challenge) Await(ctx context.Context) (string, error) {
	select {
	case msg := <-c.responses:
		return msg, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type key struct {
	channelID string
	userID    string
}

// Registry tracks pending challenges and feeds them incoming messages.
type Registry struct {
	mu      sync.Mutex
	pending map[key]*Challenge
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[key]*Challenge)}
}

// Register creates and tracks a challenge for one responder and channel.
func (r *Registry) Register(code, roll, userID, channelID string) (*Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{channelID: channelID, userID: userID}
	if _, ok := r.pending[k]; ok {
		return nil, ErrChallengeActive
	}
	c := &Challenge{
		ID:         uuid.NewString(),
		Code:       code,
		RollNumber: roll,
		UserID:     userID,
		ChannelID:  channelID,
		responses:  make(chan string, 8),
	}
	r.pending[k] = c
	return c, nil
}

// Remove drops a challenge. Removing an already removed challenge is a no-op.
func (r *Registry) Remove(c *Challenge) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{channelID: c.ChannelID, userID: c.UserID}
	if cur, ok := r.pending[k]; ok && cur.ID == c.ID {
		delete(r.pending, k)
	}
}

// Resolve offers a channel message to whichever challenge is waiting on the
// (channel, author) pair. It reports whether the message was consumed.
func (r *Registry) Resolve(channelID, userID, content string) bool {
	r.mu.Lock()
	c, ok := r.pending[key{channelID: channelID, userID: userID}]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case c.responses <- content:
	default:
		// The flow is not keeping up; drop rather than block the gateway.
	}
	return true
}
