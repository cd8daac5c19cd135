package authcore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/axialab/authcore/otp"
)

// fakeDirectory is an in-memory Directory for tests.
type fakeDirectory struct {
	mu     sync.Mutex
	nextID int
	byID   map[string]*Principal

	failWith error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{byID: make(map[string]*Principal)}
}

func (d *fakeDirectory) FindByIdentifier(_ context.Context, identifier string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failWith != nil {
		return nil, d.failWith
	}
	for _, p := range d.byID {
		if p.Identifier == identifier {
			out := *p
			return &out, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) FindByID(_ context.Context, id string) (*Principal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failWith != nil {
		return nil, d.failWith
	}
	p, ok := d.byID[id]
	if !ok {
		return nil, nil
	}
	out := *p
	return &out, nil
}

func (d *fakeDirectory) Create(_ context.Context, draft NewPrincipal) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.failWith != nil {
		return "", d.failWith
	}
	for _, p := range d.byID {
		if p.Identifier == draft.Identifier {
			return "", ErrDuplicateIdentifier
		}
	}

	d.nextID++
	id := fmt.Sprintf("p-%d", d.nextID)
	d.byID[id] = &Principal{
		ID:         id,
		Identifier: draft.Identifier,
		SecretHash: draft.SecretHash,
		Role:       draft.Role,
	}
	return id, nil
}

func (d *fakeDirectory) SetEmailVerified(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("no principal %s", id)
	}
	p.EmailVerified = true
	return nil
}

func (d *fakeDirectory) SetSecretHash(_ context.Context, id, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("no principal %s", id)
	}
	p.SecretHash = hash
	return nil
}

// delete removes a principal directly, bypassing any flow.
func (d *fakeDirectory) delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}

// fakeOrgs returns one configurable answer for every principal.
type fakeOrgs struct {
	mu    sync.Mutex
	state *OrganizationState
	err   error
}

func (o *fakeOrgs) FindOrganizationStatus(context.Context, string) (*OrganizationState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.err != nil {
		return nil, o.err
	}
	if o.state == nil {
		return nil, nil
	}
	out := *o.state
	return &out, nil
}

func (o *fakeOrgs) set(state *OrganizationState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = state
}

type delivered struct {
	Destination string
	Purpose     otp.Purpose
	Code        string
}

// fakeDeliverer records every delivered code in order.
type fakeDeliverer struct {
	mu    sync.Mutex
	sent  []delivered
	fail  error
}

func (f *fakeDeliverer) DeliverCode(_ context.Context, destination string, purpose otp.Purpose, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	f.sent = append(f.sent, delivered{Destination: destination, Purpose: purpose, Code: code})
	return nil
}

func (f *fakeDeliverer) last(t *testing.T) delivered {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		t.Fatal("no code delivered")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type testEnv struct {
	svc  *Service
	dir  *fakeDirectory
	orgs *fakeOrgs
	del  *fakeDeliverer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, func(*Config) {})
}

func newTestEnvWith(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := DefaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789abcdef")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-0123456789abcde")
	// Cheap work factor; these tests exercise flow logic, not hashing cost.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	mutate(&cfg)

	dir := newFakeDirectory()
	orgs := &fakeOrgs{}
	del := &fakeDeliverer{}

	svc, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithDirectory(dir).
		WithOrganizations(orgs).
		WithDeliverer(del).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, dir: dir, orgs: orgs, del: del}
}

// registerVerified walks the whole onboarding path and returns the subject
// id together with its first token pair.
func (e *testEnv) registerVerified(t *testing.T, identifier, secret string, role Role) (string, *TokenPair) {
	t.Helper()
	ctx := context.Background()

	id, err := e.svc.Register(ctx, Registration{Identifier: identifier, Secret: secret, Role: role})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	pair, err := e.svc.VerifyEmail(ctx, identifier, e.del.last(t).Code)
	if err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
	return id, pair
}
