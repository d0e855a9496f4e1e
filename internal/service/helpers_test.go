package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/storage"
)

const strongPassword = "Nova#Senha2026"

// parâmetros leves para manter os testes rápidos; o formato continua Argon2id
var testHashParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type testEnv struct {
	store     *memStore
	clock     time.Time
	audit     *AuditLogger
	passwords *PasswordManager
	auth      *AuthService
	sync      *RoleSyncEngine
	users     *UserService
	redis     *fakeRedis
	uploader  *stubUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    newMemStore(),
		clock:    time.Now().UTC().Truncate(time.Second),
		redis:    newFakeRedis(),
		uploader: &stubUploader{},
	}
	now := func() time.Time { return env.clock }

	env.audit = NewAuditLogger(env.store, 100, 1000)
	env.audit.now = now

	env.passwords = NewPasswordManager(DefaultPasswordPolicy)
	env.passwords.now = now
	env.passwords.hash = func(p string) (string, error) { return argon2id.CreateHash(p, testHashParams) }

	env.auth = NewAuthService(env.store, env.passwords, env.audit, auth.NewJWTManager("segredo-de-teste-com-mais-de-32-caracteres", 15*time.Minute), env.redis)
	env.auth.now = now

	env.sync = NewRoleSyncEngine(env.store, env.audit, env.passwords)
	env.sync.now = now

	env.users = NewUserService(env.store, env.audit, env.sync, env.uploader)
	env.users.now = now
	return env
}

func (e *testEnv) advance(d time.Duration) {
	e.clock = e.clock.Add(d)
}

func (e *testEnv) create(t *testing.T, cpf string, role repo.Role, createdBy *uuid.UUID) CreatedUser {
	t.Helper()
	out, err := e.sync.CreateUser(context.Background(), CreateUserInput{
		FullName:   "Profissional " + cpf,
		Email:      cpf + "@saude.exemplo.gov.br",
		NationalID: cpf,
		BirthDate:  "1990-05-17",
		Role:       string(role),
		Password:   "Temp#123",
		CreatedBy:  createdBy,
	})
	require.NoError(t, err)
	return out
}

func (e *testEnv) caller(t *testing.T, id uuid.UUID) *Caller {
	t.Helper()
	c, err := e.auth.ResolveCaller(context.Background(), id)
	require.NoError(t, err)
	return c
}

type fakeRedis struct {
	keys   map[string]time.Duration
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{keys: map[string]time.Duration{}, values: map[string]string{}}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	f.keys[key] = expiration
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type stubUploader struct {
	inputs []storage.UploadInput
	err    error
}

func (s *stubUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, input)
	return &storage.UploadResult{URL: "https://cdn.exemplo.gov.br/" + input.Key}, nil
}
