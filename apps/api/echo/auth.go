package echoapi

import (
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-schedule/core"
)

const (
	contextTokenKey = "userToken"

	// role prefixes as issued by the masomo user service
	roleAdmin   = "admin:"
	roleTeacher = "teacher:"
)

// Claims represents the authorization claims transmitted via a JWT. Tokens are issued by the masomo
// user service; this API only verifies them.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username,omitempty"`
	Email    string   `json:"email,omitempty"`
	IsAdmin  bool     `json:"is_admin,omitempty"`
	Roles    []string `json:"roles,omitempty"`
}

// NewClaims returns claims for a subject, valid for ttl.
func NewClaims(conf *core.Config, subject, username, email string, roles []string, ttl time.Duration) *Claims {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Username: username,
		Email:    email,
		Roles:    roles,
	}
	for _, role := range roles {
		if strings.HasPrefix(role, roleAdmin) {
			claims.IsAdmin = true
		}
	}
	return claims
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(secret string, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// jwtConfig verifies HS256 bearer tokens and stores the parsed *jwt.Token, carrying *Claims, in the context.
func jwtConfig(secret string) middleware.JWTConfig {
	key := []byte(secret)
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != middleware.AlgorithmHS256 {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return key, nil
	}

	return middleware.JWTConfig{
		ContextKey: contextTokenKey,
		ParseTokenFunc: func(auth string, _ echo.Context) (interface{}, error) {
			token, err := jwt.ParseWithClaims(auth, new(Claims), keyFunc)
			if err != nil {
				return nil, err
			}
			if !token.Valid {
				return nil, errors.New("invalid token")
			}
			return token, nil
		},
	}
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextActor(ctx echo.Context) core.Actor {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return core.Actor{}
	}
	return core.Actor{ID: claims.Subject, Username: claims.Username, Email: claims.Email}
}

// contextHasAnyRole reports whether the token carries one of roles, or a role under one of the
// prefixes among them ("admin:" matches "admin:owner").
func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return false
	}
	held := append([]string(nil), claims.Roles...)
	sort.Strings(held)
	for _, role := range roles {
		i := sort.SearchStrings(held, role)
		if i < len(held) && strings.HasPrefix(held[i], role) {
			return true
		}
	}
	return false
}
