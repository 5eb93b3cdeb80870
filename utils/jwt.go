package utils

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const unlockIssuer = "RTOLookup"

var ErrInvalidUnlockToken = errors.New("invalid or expired unlock token")

// UnlockClaims prove that the order paid for a lookup of VehicleNumber.
type UnlockClaims struct {
	OrderID       string `json:"order_id"`
	VehicleNumber string `json:"vehicle_number"`
	UTR           string `json:"utr"`
	jwt.RegisteredClaims
}

// UnlockTokens signs and verifies unlock tokens.
type UnlockTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewUnlockTokens builds a signer. An empty secret is replaced by a random one,
// which means tokens do not survive a restart.
func NewUnlockTokens(secret []byte, ttl time.Duration) (*UnlockTokens, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
		Error(nil).Warn("UNLOCK_TOKEN_SECRET not set, using an ephemeral secret")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &UnlockTokens{secret: secret, ttl: ttl, now: time.Now}, nil
}

func (u *UnlockTokens) Generate(orderID, vehicleNumber, utr string) (string, error) {
	now := u.now()
	claims := &UnlockClaims{
		OrderID:       orderID,
		VehicleNumber: vehicleNumber,
		UTR:           utr,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orderID,
			ExpiresAt: jwt.NewNumericDate(now.Add(u.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    unlockIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *UnlockTokens) Parse(tokenString string) (*UnlockClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UnlockClaims{}, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(unlockIssuer),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidUnlockToken
	}

	claims, ok := token.Claims.(*UnlockClaims)
	if !ok || claims.OrderID == "" || claims.VehicleNumber == "" {
		return nil, ErrInvalidUnlockToken
	}
	return claims, nil
}
