package credential

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"arksync/internal/mapper"
	"arksync/internal/recordstore"
	"arksync/pkg/domain"
)

// DefaultTokenTTL is the session lifetime when none is configured.
const DefaultTokenTTL = 12 * time.Hour

// Claims are the session token claims.
type Claims struct {
	OrgID string `json:"org,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator checks credentials against the users collection of a record
// store and signs HS256 session tokens.
type Authenticator struct {
	users  recordstore.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewAuthenticator returns an Authenticator. ttl <= 0 uses DefaultTokenTTL.
func NewAuthenticator(users recordstore.Store, secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Authenticator{users: users, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *Authenticator) Login(ctx context.Context, email, passwordHash string) (domain.Session, error) {
	if email == "" || passwordHash == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	rows, err := a.users.List(ctx, string(domain.CollectionUsers))
	if err != nil {
		return domain.Session{}, fmt.Errorf("load users: %w", err)
	}
	for _, row := range rows {
		user, err := decodeUser(row)
		if err != nil || user.Deleted || !strings.EqualFold(user.Email, email) {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(passwordHash)) != 1 {
			return domain.Session{}, ErrInvalidCredentials
		}
		user.PasswordHash = ""
		return a.issue(user)
	}
	return domain.Session{}, ErrInvalidCredentials
}

func (a *Authenticator) issue(user domain.User) (domain.Session, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	claims := Claims{
		OrgID: user.OrgID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign token: %w", err)
	}
	return domain.Session{Token: token, User: user, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

// Verify parses and validates a session token.
func (a *Authenticator) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, errors.Join(ErrInvalidCredentials, err)
	}
	return claims, nil
}

func decodeUser(row recordstore.Row) (domain.User, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return domain.User{}, err
	}
	var r mapper.UserRow
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.User{}, err
	}
	return mapper.UserFromRemote(r), nil
}

var _ Service = (*Authenticator)(nil)
