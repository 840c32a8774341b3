package directory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Armour007/docproc-backend/internal/utils"
)

type fakeConn struct {
	bindErr   error
	searchErr error
	entries   []*ldap.Entry

	boundDN string
	filter  string
	closed  bool
}

func (f *fakeConn) Bind(dn, _ string) error {
	f.boundDN = dn
	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.filter = req.Filter
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func (f *fakeConn) Close() { f.closed = true }

func newTestLDAP(fc *fakeConn) *LDAP {
	l := NewLDAP(LDAPConfig{URL: "ldap://directory:389", BaseDN: "dc=example,dc=com"})
	l.dial = func(context.Context, LDAPConfig) (conn, error) { return fc, nil }
	return l
}

func TestLDAP_Authenticate_Success(t *testing.T) {
	fc := &fakeConn{entries: []*ldap.Entry{
		ldap.NewEntry("uid=jdoe,dc=example,dc=com", map[string][]string{
			"uid":         {"jdoe"},
			"mail":        {"john.doe@corp.test"},
			"displayName": {"John Doe"},
		}),
	}}
	id, err := newTestLDAP(fc).Authenticate(context.Background(), "jdoe", "secret")
	require.NoError(t, err)
	assert.Equal(t, &Identity{ID: "jdoe", Username: "jdoe", Email: "john.doe@corp.test", DisplayName: "John Doe"}, id)
	assert.Equal(t, "uid=jdoe,dc=example,dc=com", fc.boundDN)
	assert.Equal(t, "(uid=jdoe)", fc.filter)
	assert.True(t, fc.closed)
}

func TestLDAP_Authenticate_Fallbacks(t *testing.T) {
	fc := &fakeConn{entries: []*ldap.Entry{
		ldap.NewEntry("uid=asmith,dc=example,dc=com", map[string][]string{"cn": {"Alice Smith"}}),
	}}
	id, err := newTestLDAP(fc).Authenticate(context.Background(), "asmith", "pw")
	require.NoError(t, err)
	assert.Equal(t, "asmith", id.ID)
	assert.Equal(t, "asmith@example.com", id.Email)
	assert.Equal(t, "Alice Smith", id.DisplayName)

	fc.entries = []*ldap.Entry{ldap.NewEntry("uid=bob,dc=example,dc=com", nil)}
	id, err = newTestLDAP(fc).Authenticate(context.Background(), "bob", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", id.DisplayName)
}

func TestLDAP_Authenticate_EscapesInput(t *testing.T) {
	fc := &fakeConn{entries: []*ldap.Entry{ldap.NewEntry("x", nil)}}
	_, err := newTestLDAP(fc).Authenticate(context.Background(), "a*)(uid=*", "pw")
	require.NoError(t, err)
	assert.Equal(t, `(uid=a\2a\29\28uid=\2a)`, fc.filter)

	_, err = newTestLDAP(fc).Authenticate(context.Background(), "a,b+c", "pw")
	require.NoError(t, err)
	assert.Equal(t, `uid=a\,b\+c,dc=example,dc=com`, fc.boundDN)
	assert.Equal(t, `(uid=a,b+c)`, fc.filter)
}

func TestLDAP_Authenticate_Errors(t *testing.T) {
	cases := []struct {
		name     string
		conn     *fakeConn
		password string
		want     error
	}{
		{"empty password", &fakeConn{}, "", ErrInvalidCredentials},
		{"bad credentials", &fakeConn{bindErr: ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid"))}, "pw", ErrInvalidCredentials},
		{"server error", &fakeConn{bindErr: ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))}, "pw", ErrUnavailable},
		{"search error", &fakeConn{searchErr: errors.New("timeout")}, "pw", ErrUnavailable},
		{"no entry", &fakeConn{}, "pw", ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newTestLDAP(tc.conn).Authenticate(context.Background(), "jdoe", tc.password)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLDAP_Authenticate_DialError(t *testing.T) {
	l := NewLDAP(LDAPConfig{BaseDN: "dc=example,dc=com"})
	l.dial = func(context.Context, LDAPConfig) (conn, error) { return nil, errors.New("connection refused") }
	_, err := l.Authenticate(context.Background(), "jdoe", "pw")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStatic(t *testing.T) {
	hash, err := utils.HashPassword("Tr1cky#Horse")
	require.NoError(t, err)
	file := "# dev users\n\njdoe:" + hash + ":jdoe@corp.test:John Doe\nbob:" + hash + "\n"

	s, err := ParseStatic(strings.NewReader(file), "corp.test")
	require.NoError(t, err)

	id, err := s.Authenticate(context.Background(), "jdoe", "Tr1cky#Horse")
	require.NoError(t, err)
	assert.Equal(t, "John Doe", id.DisplayName)
	assert.Equal(t, "jdoe@corp.test", id.Email)

	id, err = s.Authenticate(context.Background(), "bob", "Tr1cky#Horse")
	require.NoError(t, err)
	assert.Equal(t, "bob@corp.test", id.Email)

	_, err = s.Authenticate(context.Background(), "bob", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(context.Background(), "ghost", "Tr1cky#Horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseStatic_BadLine(t *testing.T) {
	_, err := ParseStatic(strings.NewReader("justaname\n"), "")
	assert.Error(t, err)
}
