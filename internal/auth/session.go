// Package auth issues and verifies the session tokens that identify a
// client across reconnects. The token subject is the session id the room
// engine keys players by.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jason-s-yu/partyroom/internal/models"
)

// privateKey and publicKey are used for signing and verifying JWT tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// tokenTTL is how long a token stays valid; 0 means no exp claim.
	tokenTTL time.Duration
)

var ErrInvalidToken = errors.New("invalid session token")

// Init generates a fresh ed25519 key pair at runtime. Tokens issued before a
// restart stop verifying.
func Init(ttl time.Duration) error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	tokenTTL = ttl
	return nil
}

// InitFromPath reads raw ed25519 private/public keys from file, so tokens
// survive a restart. The public key must belong to the private key.
func InitFromPath(privatePath, publicPath string, ttl time.Duration) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return fmt.Errorf("key files have the wrong size for ed25519")
	}

	priv := ed25519.PrivateKey(privateKeyData)
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), publicKeyData) {
		return fmt.Errorf("public key does not match the private key")
	}

	privateKey = priv
	publicKey = ed25519.PublicKey(publicKeyData)
	tokenTTL = ttl
	return nil
}

// NewGuestSession mints a session id for a client without one.
func NewGuestSession(name string) models.Session {
	if name == "" {
		name = "Guest"
	}
	return models.Session{ID: uuid.NewString(), Name: name, IsGuest: true}
}

// CreateJWT creates a signed token with "sub" = session id.
func CreateJWT(s models.Session) (string, error) {
	if privateKey == nil {
		return "", fmt.Errorf("auth keys are not initialized")
	}
	claims := jwt.MapClaims{
		"sub":   s.ID,
		"name":  s.Name,
		"guest": s.IsGuest,
		"iat":   time.Now().Unix(),
	}
	if tokenTTL > 0 {
		claims["exp"] = time.Now().Add(tokenTTL).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateJWT verifies a token and returns the session it names.
func AuthenticateJWT(tokenString string) (models.Session, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return models.Session{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return models.Session{}, fmt.Errorf("%w: invalid jwt claims", ErrInvalidToken)
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return models.Session{}, fmt.Errorf("%w: missing sub in jwt", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	guest, _ := claims["guest"].(bool)
	return models.Session{ID: sub, Name: name, IsGuest: guest}, nil
}
