package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const resetPurpose = "password_reset"

// resetClaims はパスワード再設定トークンのクレーム。
// pwhは発行時点のパスワードハッシュの指紋で、再設定後はトークンが無効になる。
type resetClaims struct {
	Purpose     string `json:"purpose"`
	Fingerprint string `json:"pwh"`
	jwt.RegisteredClaims
}

var errInvalidResetToken = errors.New("invalid reset token")

// passwordFingerprint はパスワードハッシュから短い指紋を生成する。
func passwordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:8])
}

// issueResetToken はHS256で署名したパスワード再設定トークンを発行する。
func issueResetToken(secret []byte, accountID, passwordHash string, now time.Time, ttl time.Duration) (string, error) {
	claims := resetClaims{
		Purpose:     resetPurpose,
		Fingerprint: passwordFingerprint(passwordHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// parseResetToken はトークンを検証し、クレームを返す。
// 署名・有効期限・用途のいずれかが不正な場合はerrInvalidResetTokenを返す。
func parseResetToken(secret []byte, raw string, now func() time.Time) (*resetClaims, error) {
	claims := &resetClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidResetToken, err)
	}
	if claims.Purpose != resetPurpose || claims.Subject == "" {
		return nil, errInvalidResetToken
	}
	return claims, nil
}
