package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v5"
)

// JWTManager mints and verifies the principal tokens the platform hands to
// wallet-authenticated callers. The token subject is the caller's address;
// everything downstream treats that address as an unforgeable principal.
type JWTManager struct {
	issuer   string
	audience string
	secret   []byte
}

type claims struct {
	Address string `json:"addr"`
	jwt.RegisteredClaims
}

func NewJWTManager(issuer, audience, signingKey string) *JWTManager {
	return &JWTManager{
		issuer:   issuer,
		audience: audience,
		secret:   []byte(signingKey),
	}
}

func (m *JWTManager) Mint(principal common.Address, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	c := claims{
		Address: principal.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Audience:  []string{m.audience},
			Subject:   principal.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(m.secret)
}

func (m *JWTManager) Parse(tokenString string) (common.Address, error) {
	c := &claims{}
	tok, err := jwt.ParseWithClaims(tokenString, c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return common.Address{}, err
	}
	if !tok.Valid {
		return common.Address{}, errors.New("invalid token")
	}
	if c.Issuer != m.issuer {
		return common.Address{}, errors.New("invalid issuer")
	}
	ok := false
	for _, aud := range c.Audience {
		if aud == m.audience {
			ok = true
			break
		}
	}
	if !ok {
		return common.Address{}, errors.New("invalid audience")
	}
	if !common.IsHexAddress(c.Address) {
		return common.Address{}, errors.New("invalid principal address")
	}
	return common.HexToAddress(c.Address), nil
}
