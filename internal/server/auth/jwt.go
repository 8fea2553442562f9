// Package auth issues and checks the HS256 tokens of the backing store:
// access tokens for API calls and single-purpose recovery tickets.
package auth

import (
	"encoding/base64"
	"errors"
	"time"

	"github.com/dmitrijs2005/sekure/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Token purposes. An access token is never accepted as a ticket and the
// other way round.
const (
	PurposeAccess   = "access"
	PurposeRecovery = "recovery"
)

// Claims carries the registered claims plus the account the token speaks
// for. Salt is only set on recovery tickets and pins the ticket to the salt
// it was issued with.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"uid"`
	Username string `json:"usr"`
	Purpose  string `json:"pur"`
	Salt     string `json:"salt,omitempty"`
}

func sign(claims Claims, secretKey []byte, validity time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(validity)
	claims.ExpiresAt = jwt.NewNumericDate(expires)
	claims.IssuedAt = jwt.NewNumericDate(time.Now())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expires, nil
}

// GenerateToken returns an access token for the user and its expiry.
func GenerateToken(userID, username string, secretKey []byte, validityDuration time.Duration) (string, time.Time, error) {
	return sign(Claims{UserID: userID, Username: username, Purpose: PurposeAccess}, secretKey, validityDuration)
}

// GenerateRecoveryTicket returns a ticket authorising one recovery
// completion for userID with the given staged salt.
func GenerateRecoveryTicket(userID string, salt, secretKey []byte, validityDuration time.Duration) (string, error) {
	tok, _, err := sign(Claims{
		UserID:  userID,
		Purpose: PurposeRecovery,
		Salt:    base64.RawURLEncoding.EncodeToString(salt),
	}, secretKey, validityDuration)
	return tok, err
}

func parse(tokenString string, secretKey []byte, purpose string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Purpose != purpose || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}

// ParseToken validates an access token and returns its claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	return parse(tokenString, secretKey, PurposeAccess)
}

// GetUserIDFromToken validates an access token and returns its user id.
func GetUserIDFromToken(tokenString string, secretKey []byte) (string, error) {
	claims, err := ParseToken(tokenString, secretKey)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// ParseRecoveryTicket validates a recovery ticket and returns the user id
// and staged salt it was issued for.
func ParseRecoveryTicket(ticket string, secretKey []byte) (string, []byte, error) {
	claims, err := parse(ticket, secretKey, PurposeRecovery)
	if err != nil {
		return "", nil, err
	}
	salt, err := base64.RawURLEncoding.DecodeString(claims.Salt)
	if err != nil || len(salt) == 0 {
		return "", nil, common.ErrInvalidToken
	}
	return claims.UserID, salt, nil
}
