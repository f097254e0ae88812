package simserver

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "brilho-sim"

// ticketTTL bounds how long a channel ticket stays redeemable.
const ticketTTL = 60 * time.Second

func issueJWT(secret string, userID uint, typ string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"iss": tokenIssuer,
		"sub": fmt.Sprint(userID),
		"typ": typ,
		"exp": time.Now().Add(ttl).Unix(),
		"iat": time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// IssueAuthToken mints a bearer token for the REST API.
func IssueAuthToken(secret string, userID uint) (string, error) {
	return issueJWT(secret, userID, "auth", 24*time.Hour)
}

// IssueChannelTicket mints a short-lived ticket for the push channel.
func IssueChannelTicket(secret string, userID uint) (string, error) {
	return issueJWT(secret, userID, "ws", ticketTTL)
}

func parseJWT(secret, tokenString, wantTyp string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid token claims")
	}
	if iss, _ := claims["iss"].(string); iss != tokenIssuer {
		return 0, fmt.Errorf("invalid token issuer")
	}
	if typ, _ := claims["typ"].(string); typ != wantTyp {
		return 0, fmt.Errorf("wrong token type %q", typ)
	}
	sub, _ := claims["sub"].(string)
	var userID uint
	if _, err := fmt.Sscanf(sub, "%d", &userID); err != nil || userID == 0 {
		return 0, fmt.Errorf("invalid token subject %q", sub)
	}
	return userID, nil
}
