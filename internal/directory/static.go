package directory

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Armour007/docproc-backend/internal/utils"
)

type staticUser struct {
	hash     string
	identity Identity
}

// Static is a file-backed directory for local development. Each line is
// username:bcrypt-hash[:email[:display name]]; blank lines and # comments
// are ignored.
type Static struct {
	users       map[string]staticUser
	emailDomain string
}

// LoadStatic reads a users file from path.
func LoadStatic(path, emailDomain string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseStatic(f, emailDomain)
}

// ParseStatic reads users from r.
func ParseStatic(r io.Reader, emailDomain string) (*Static, error) {
	if emailDomain == "" {
		emailDomain = "example.com"
	}
	s := &Static{users: map[string]staticUser{}, emailDomain: emailDomain}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		parts := strings.SplitN(raw, ":", 4)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("users file line %d: want username:hash", line)
		}
		u := staticUser{hash: parts[1], identity: Identity{ID: parts[0], Username: parts[0]}}
		if len(parts) > 2 {
			u.identity.Email = parts[2]
		}
		if len(parts) > 3 {
			u.identity.DisplayName = parts[3]
		}
		if u.identity.Email == "" {
			u.identity.Email = parts[0] + "@" + emailDomain
		}
		if u.identity.DisplayName == "" {
			u.identity.DisplayName = parts[0]
		}
		s.users[parts[0]] = u
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}

// Authenticate implements Authenticator.
func (s *Static) Authenticate(_ context.Context, username, password string) (*Identity, error) {
	u, ok := s.users[strings.TrimSpace(username)]
	if !ok || password == "" || !utils.CheckPasswordHash(password, u.hash) {
		return nil, ErrInvalidCredentials
	}
	id := u.identity
	return &id, nil
}
