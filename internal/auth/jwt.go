// Package auth adapts the external identity layer to the core: it issues and
// parses signed actor tokens carrying (actorID, role). Authentication itself
// (passwords, sessions, SSO) is out of scope; the core only needs a trusted
// way to learn who is asking and in what role.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ravlo/cardvault/internal/common"
	"github.com/ravlo/cardvault/internal/models"
)

// Claims extends the registered JWT claims with the actor identity.
type Claims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
}

// GenerateActorToken mints an HS256 token for the given actor.
func GenerateActorToken(actor models.Actor, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
		},
		ActorID: actor.ID,
		Role:    string(actor.Role),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ActorFromToken validates the token and returns the actor it identifies.
func ActorFromToken(tokenString string, secretKey []byte) (models.Actor, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	})
	if err != nil {
		return models.Actor{}, fmt.Errorf("%w: %v", common.ErrUnauthorized, err)
	}

	if !token.Valid {
		return models.Actor{}, fmt.Errorf("%w: invalid token", common.ErrUnauthorized)
	}

	return models.Actor{ID: claims.ActorID, Role: models.Role(claims.Role)}, nil
}
