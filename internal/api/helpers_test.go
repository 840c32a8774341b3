package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	database "github.com/Armour007/docproc-backend/internal"
	"github.com/Armour007/docproc-backend/internal/directory"
	"github.com/Armour007/docproc-backend/internal/mesh"
	"github.com/Armour007/docproc-backend/internal/processor"
	"github.com/Armour007/docproc-backend/internal/utils"
)

var testSecret = []byte("test_secret")

var pngBase64 = base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00"))

type fakeDirectory struct {
	ident *directory.Identity
	err   error
}

func (f *fakeDirectory) Authenticate(_ context.Context, username, _ string) (*directory.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	id := *f.ident
	id.Username = username
	return &id, nil
}

type fakeStore struct {
	mu    sync.Mutex
	names []string
	data  [][]byte
	err   error
}

func (s *fakeStore) Put(_ context.Context, name string, data []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names = append(s.names, name)
	s.data = append(s.data, data)
	return "https://blob.test/snapshots/" + name, nil
}

type fakeProcessor struct {
	mu     sync.Mutex
	res    *processor.Result
	err    error
	calls  int
	lastOp processor.Operation
	body   map[string]any
}

func (p *fakeProcessor) Call(_ context.Context, op processor.Operation, body any) (*processor.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastOp = op
	p.body, _ = body.(map[string]any)
	return p.res, p.err
}

type eventLog struct {
	mu     sync.Mutex
	events []mesh.Event
}

func (l *eventLog) handler(_ context.Context, e mesh.Event) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) topics() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Topic)
	}
	return out
}

type testEnv struct {
	router *gin.Engine
	mock   sqlmock.Sqlmock
	dir    *fakeDirectory
	blobs  *fakeStore
	proc   *fakeProcessor
	revs   *MemoryRevocations
	bus    *mesh.LocalBus
	events *eventLog
}

// newTestEnv installs a sqlmock database and fakes for every collaborator.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	database.DB = sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() {
		_ = db.Close()
		database.DB = nil
	})

	env := &testEnv{
		mock:   mock,
		dir:    &fakeDirectory{ident: &directory.Identity{ID: "jdoe", Email: "jdoe@example.com", DisplayName: "John Doe"}},
		blobs:  &fakeStore{},
		proc:   &fakeProcessor{res: &processor.Result{Status: http.StatusOK, Body: json.RawMessage(`{"ok":true}`)}},
		revs:   NewMemoryRevocations(),
		bus:    mesh.NewLocalBus(),
		events: &eventLog{},
	}
	for _, topic := range []string{mesh.TopicSessionOpened, mesh.TopicSessionClosed, mesh.TopicHistoryLogged} {
		_, err := env.bus.Subscribe(topic, env.events.handler)
		require.NoError(t, err)
	}
	Configure(Deps{
		Directory:   env.dir,
		Blobs:       env.blobs,
		Processor:   env.proc,
		Revocations: env.revs,
		Bus:         env.bus,
		JWTSecret:   testSecret,
		TokenTTL:    time.Hour,
	})
	resetBreakers()
	env.router = NewRouter(RouterOptions{Logger: zap.NewNop(), LoginRPM: 1000})
	return env
}

func resetBreakers() {
	breakersMu.Lock()
	breakers = map[string]*CircuitBreaker{}
	breakersMu.Unlock()
}

// issue mints a token for userID bound to a fresh session.
func issue(t *testing.T, userID string) (string, uuid.UUID, utils.IssuedToken) {
	t.Helper()
	sid := uuid.New()
	tok, err := utils.GenerateJWT(testSecret, utils.Identity{UserID: userID, Username: userID, Email: userID + "@example.com"}, sid, time.Hour)
	require.NoError(t, err)
	return tok.Token, sid, tok
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			_ = json.NewEncoder(&buf).Encode(b)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
