package api

import (
	"context"
	"time"

	"github.com/Armour007/docproc-backend/internal/blob"
	"github.com/Armour007/docproc-backend/internal/directory"
	"github.com/Armour007/docproc-backend/internal/mesh"
	"github.com/Armour007/docproc-backend/internal/processor"
)

// ProcessorClient is the upstream document-processing service.
type ProcessorClient interface {
	Call(ctx context.Context, op processor.Operation, body any) (*processor.Result, error)
}

// Deps are the collaborators handlers use. Set once at startup with Configure.
type Deps struct {
	Directory          directory.Authenticator
	Blobs              blob.Store // nil disables snapshot uploads
	Processor          ProcessorClient
	Revocations        RevocationStore
	Bus                mesh.Bus
	JWTSecret          []byte
	TokenTTL           time.Duration
	SnapshotSigningKey string
	StrictSessions     bool
	BlobTimeout        time.Duration
}

var deps Deps

// Configure installs d, filling in in-memory defaults for optional parts.
func Configure(d Deps) {
	if d.Revocations == nil {
		d.Revocations = NewMemoryRevocations()
	}
	if d.Bus == nil {
		d.Bus = mesh.NewLocalBus()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 24 * time.Hour
	}
	if d.BlobTimeout <= 0 {
		d.BlobTimeout = 15 * time.Second
	}
	deps = d
}

// CurrentDeps returns the installed dependencies.
func CurrentDeps() Deps { return deps }
