// Package token produces unguessable, collision-resistant tokens used to
// authorize physical check-in (QR codes). A token is a time-ordering prefix
// followed by 128 bits of cryptographically secure randomness, rendered as
// hex: the prefix aids debugging and sorting, the entropy defeats guessing.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/sethvargo/go-retry"
)

const (
	// randomBytes is the entropy of the random part (128 bits).
	randomBytes = 16

	// maxAttempts is a defensive ceiling on collision retries; the
	// collision probability is astronomically low, so hitting it means
	// something else is wrong.
	maxAttempts = 3
)

// Checker reports whether a token is already taken.
type Checker interface {
	Exists(ctx context.Context, token string) (bool, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, token string) (bool, error)

func (f CheckerFunc) Exists(ctx context.Context, token string) (bool, error) {
	return f(ctx, token)
}

// Generator issues tokens and checks them for uniqueness against storage.
type Generator struct {
	checker Checker
	now     func() time.Time
}

// NewGenerator constructs a Generator backed by the given uniqueness checker.
func NewGenerator(checker Checker) *Generator {
	return &Generator{checker: checker, now: time.Now}
}

// NewToken returns a fresh token: 12 hex chars of unix-milli timestamp plus
// 32 hex chars of random data (44 chars total).
func (g *Generator) NewToken() (string, error) {
	b := make([]byte, randomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read error: %w", err)
	}
	return fmt.Sprintf("%012x%s", g.now().UnixMilli(), hex.EncodeToString(b)), nil
}

// UniqueToken generates a token and verifies no existing row holds it,
// retrying with a small jittered backoff on collision. Exhausting the retry
// budget returns common.ErrTokenGenerationExhausted.
func (g *Generator) UniqueToken(ctx context.Context) (string, error) {
	var tok string

	backoff := retry.WithMaxRetries(maxAttempts-1,
		retry.WithJitter(25*time.Millisecond, retry.NewConstant(50*time.Millisecond)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		t, err := g.NewToken()
		if err != nil {
			return err
		}
		taken, err := g.checker.Exists(ctx, t)
		if err != nil {
			return err
		}
		if taken {
			return retry.RetryableError(common.ErrTokenGenerationExhausted)
		}
		tok = t
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("unique token: %w", err)
	}
	return tok, nil
}
