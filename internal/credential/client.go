package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"arksync/internal/transport"
	"arksync/pkg/domain"
)

// LoginPath is the credential endpoint of the remote service.
const LoginPath = "/api/auth/login"

// Writer is the transport write path.
type Writer interface {
	Write(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// HTTPService logs in against the remote service.
type HTTPService struct {
	remote Writer
}

// NewHTTPService returns an HTTPService sending through remote.
func NewHTTPService(remote Writer) *HTTPService {
	return &HTTPService{remote: remote}
}

func (s *HTTPService) Login(ctx context.Context, email, passwordHash string) (domain.Session, error) {
	data, err := s.remote.Write(ctx, LoginPath, LoginRequest{Email: email, PasswordHash: passwordHash})
	if err != nil {
		if transport.StatusOf(err) == http.StatusUnauthorized {
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, fmt.Errorf("login: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if sess.Token == "" {
		return domain.Session{}, fmt.Errorf("login: empty token in response")
	}
	return sess, nil
}

var _ Service = (*HTTPService)(nil)
