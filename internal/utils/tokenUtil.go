package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
)

// GetDataFromToken validates a service JWT and returns its claims. The
// optional "Bearer " prefix is stripped.
func GetDataFromToken(tokenString string, jwtKey []byte) (*TokenData, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, fmt.Errorf("missing token")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token or claims")
	}

	uid, _ := claims["uid"].(string)
	if uid == "" {
		return nil, fmt.Errorf("token has no uid")
	}
	email, _ := claims["email"].(string)

	return &TokenData{UID: uid, Email: email}, nil
}

func CreateTokenFromData(tokenData TokenData, expiry time.Time, jwtKey []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp":   expiry.Unix(),
		"iat":   time.Now().Unix(),
		"uid":   tokenData.UID,
		"email": tokenData.Email,
	})

	return token.SignedString(jwtKey)
}

type TokenData struct {
	UID   string
	Email string
}
