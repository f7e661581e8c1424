package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the bearer token payload: the authenticated user id and the
// standard registered claims (issuer, subject, issued/expires at).
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}
