// Package session carries the signed-in user through every engine call.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession    = errors.New("no session in context")
	ErrInvalidToken = errors.New("invalid session token")
)

// Session identifies the local user and the token used for remote calls.
type Session struct {
	UserID   int64
	UserName string
	Token    string
}

type ctxKey struct{}

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(Session)
	return s, ok
}

// UserID returns the current user id or ErrNoSession.
func UserID(ctx context.Context) (int64, error) {
	s, ok := FromContext(ctx)
	if !ok || s.UserID <= 0 {
		return 0, ErrNoSession
	}
	return s.UserID, nil
}

// FromToken builds a session from a bearer token issued by the platform.
//
// The client cannot verify the server's signature, so the token is decoded
// without verification; the server still validates it on every request.
// The user id is taken from "user_id" or, failing that, the numeric "sub".
func FromToken(token string) (Session, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var userID int64
	switch v := claims["user_id"].(type) {
	case float64:
		userID = int64(v)
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("%w: user_id %q is not numeric", ErrInvalidToken, v)
		}
		userID = id
	}

	if userID == 0 {
		sub, err := claims.GetSubject()
		if err != nil || sub == "" {
			return Session{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
		}
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return Session{}, fmt.Errorf("%w: subject %q is not numeric", ErrInvalidToken, sub)
		}
		userID = id
	}
	if userID <= 0 {
		return Session{}, fmt.Errorf("%w: user id must be positive", ErrInvalidToken)
	}

	name, _ := claims["name"].(string)
	return Session{UserID: userID, UserName: name, Token: token}, nil
}
