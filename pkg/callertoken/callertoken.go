// Package callertoken mints and verifies the bearer tokens that carry the
// identity of the caller of the ledger API.
package callertoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken   = errors.New("invalid caller token")
	ErrInvalidSubject = errors.New("caller token subject is not a valid address")
)

// New returns an HS256 signed token whose subject is the hex address of the
// caller. A zero ttl makes the token never expire.
func New(caller common.Address, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.StandardClaims{
		Subject:  caller.Hex(),
		IssuedAt: now.Unix(),
	}
	if ttl > 0 {
		claims.ExpiresAt = now.Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse verifies the given token and returns the caller address it carries.
func Parse(tokenString string, secret []byte) (common.Address, error) {
	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(
		tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		},
	)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}
	if !token.Valid {
		return common.Address{}, ErrInvalidToken
	}
	return ParseAddress(claims.Subject)
}

// ParseAddress parses a hex encoded, 0x prefixed, 20-byte address.
func ParseAddress(str string) (common.Address, error) {
	if !common.IsHexAddress(str) {
		return common.Address{}, ErrInvalidSubject
	}
	return common.HexToAddress(str), nil
}
