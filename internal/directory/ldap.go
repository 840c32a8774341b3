package directory

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"go.uber.org/zap"
)

// LDAPConfig configures an LDAP authenticator.
type LDAPConfig struct {
	URL         string
	BaseDN      string
	StartTLS    bool
	Timeout     time.Duration
	EmailDomain string
}

// conn is the subset of *ldap.Conn used here.
type conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

type ldapConn struct{ *ldap.Conn }

func (c ldapConn) Close() { c.Conn.Close() }

type dialFunc func(ctx context.Context, cfg LDAPConfig) (conn, error)

// LDAP binds as uid=<username>,<baseDN> and reads the user's entry.
type LDAP struct {
	cfg  LDAPConfig
	dial dialFunc
}

// NewLDAP returns an authenticator for cfg. A connection is opened per login.
func NewLDAP(cfg LDAPConfig) *LDAP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.EmailDomain == "" {
		cfg.EmailDomain = "example.com"
	}
	return &LDAP{cfg: cfg, dial: dialLDAP}
}

func dialLDAP(ctx context.Context, cfg LDAPConfig) (conn, error) {
	d := &net.Dialer{Timeout: cfg.Timeout}
	if deadline, ok := ctx.Deadline(); ok {
		d.Deadline = deadline
	}
	c, err := ldap.DialURL(cfg.URL, ldap.DialWithDialer(d))
	if err != nil {
		return nil, err
	}
	c.SetTimeout(cfg.Timeout)
	if cfg.StartTLS {
		host := ""
		if u, perr := url.Parse(cfg.URL); perr == nil {
			host = u.Hostname()
		}
		if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			c.Close()
			return nil, fmt.Errorf("starttls: %w", err)
		}
	}
	return ldapConn{c}, nil
}

// UserDN returns the distinguished name bound for username.
func (l *LDAP) UserDN(username string) string {
	return fmt.Sprintf("uid=%s,%s", ldap.EscapeDN(username), l.cfg.BaseDN)
}

// Authenticate implements Authenticator.
func (l *LDAP) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	username = strings.TrimSpace(username)
	// an empty password would be an unauthenticated bind, which servers accept
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	c, err := l.dial(ctx, l.cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer c.Close()

	if err := c.Bind(l.UserDN(username), password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) ||
			ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) ||
			ldap.IsErrorWithCode(err, ldap.LDAPResultInappropriateAuthentication) {
			return nil, ErrInvalidCredentials
		}
		zap.L().Warn("ldap bind failed", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req := ldap.NewSearchRequest(
		l.cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		0, int(l.cfg.Timeout/time.Second), false,
		fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(username)),
		[]string{"uid", "mail", "displayName", "cn"},
		nil,
	)
	res, err := c.Search(req)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrUnavailable, err)
	}
	if len(res.Entries) == 0 {
		return nil, ErrUserNotFound
	}
	return l.identityFrom(username, res.Entries[0]), nil
}

func (l *LDAP) identityFrom(username string, e *ldap.Entry) *Identity {
	id := &Identity{
		ID:          e.GetAttributeValue("uid"),
		Username:    username,
		Email:       e.GetAttributeValue("mail"),
		DisplayName: e.GetAttributeValue("displayName"),
	}
	if id.ID == "" {
		id.ID = username
	}
	if id.Email == "" {
		id.Email = username + "@" + l.cfg.EmailDomain
	}
	if id.DisplayName == "" {
		id.DisplayName = e.GetAttributeValue("cn")
	}
	if id.DisplayName == "" {
		id.DisplayName = username
	}
	return id
}
