package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/decidiu/plataforma/internal/auth"
	"github.com/decidiu/plataforma/internal/config"
	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/service"
)

const testSecret = "segredo-de-teste-com-mais-de-32-caracteres"

type stubAuth struct {
	callers     map[uuid.UUID]*service.Caller
	revoked     map[string]bool
	loginResult *service.LoginResult
	loginErr    error
	recoverErr  error
	changeErr   error
	resetCaller *service.Caller
	resetTarget uuid.UUID
	logoutUser  uuid.UUID
	logoutBy    *service.Caller
}

func newStubAuth() *stubAuth {
	return &stubAuth{callers: map[uuid.UUID]*service.Caller{}, revoked: map[string]bool{}}
}

func (s *stubAuth) add(role repo.Role) *service.Caller {
	c := &service.Caller{ID: uuid.New(), Name: string(role), Role: role, Status: repo.StatusActive}
	s.callers[c.ID] = c
	return c
}

func (s *stubAuth) ResolveCaller(ctx context.Context, id uuid.UUID) (*service.Caller, error) {
	c, ok := s.callers[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *stubAuth) IsTokenRevoked(ctx context.Context, claims *auth.Claims) (bool, error) {
	return s.revoked[claims.ID], nil
}

func (s *stubAuth) Login(ctx context.Context, nationalID, password string) (*service.LoginResult, error) {
	return s.loginResult, s.loginErr
}

func (s *stubAuth) Logout(ctx context.Context, userID uuid.UUID, caller *service.Caller) error {
	s.logoutUser, s.logoutBy = userID, caller
	return nil
}

func (s *stubAuth) RecoverPassword(ctx context.Context, nationalID, birthDate string) (service.ProvisionalCredential, error) {
	if s.recoverErr != nil {
		return service.ProvisionalCredential{}, s.recoverErr
	}
	return service.ProvisionalCredential{
		Password:  "Ab3$Cd4%Ef5&",
		ExpiresAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		TTL:       24 * time.Hour,
	}, nil
}

func (s *stubAuth) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) (repo.Usuario, error) {
	if s.changeErr != nil {
		return repo.Usuario{}, s.changeErr
	}
	return repo.Usuario{ID: userID, NomeCompleto: "Maria"}, nil
}

func (s *stubAuth) AdminResetPassword(ctx context.Context, caller *service.Caller, targetID uuid.UUID, newPassword string) error {
	s.resetCaller, s.resetTarget = caller, targetID
	return nil
}

type stubUsers struct {
	err       error
	caller    *service.Caller
	created   service.CreateUserInput
	listed    service.ListUsersInput
	status    string
	docBody   []byte
	docName   string
	deletedID uuid.UUID
}

func (s *stubUsers) Create(ctx context.Context, caller *service.Caller, in service.CreateUserInput) (service.CreatedUser, error) {
	s.caller, s.created = caller, in
	if s.err != nil {
		return service.CreatedUser{}, s.err
	}
	return service.CreatedUser{User: repo.Usuario{ID: uuid.New(), NomeCompleto: in.FullName}}, nil
}

func (s *stubUsers) Get(ctx context.Context, caller *service.Caller, id uuid.UUID) (service.UserDetail, error) {
	s.caller = caller
	return service.UserDetail{User: repo.Usuario{ID: id}}, s.err
}

func (s *stubUsers) List(ctx context.Context, caller *service.Caller, in service.ListUsersInput) (service.UserPage, error) {
	s.caller, s.listed = caller, in
	return service.UserPage{Items: []repo.Usuario{}, Page: 1, PerPage: 20}, s.err
}

func (s *stubUsers) Update(ctx context.Context, caller *service.Caller, id uuid.UUID, in service.UpdateUserInput) (repo.Usuario, error) {
	s.caller = caller
	return repo.Usuario{ID: id}, s.err
}

func (s *stubUsers) SetStatus(ctx context.Context, caller *service.Caller, id uuid.UUID, status string) (repo.Usuario, error) {
	s.caller, s.status = caller, status
	return repo.Usuario{ID: id, Status: repo.Status(status)}, s.err
}

func (s *stubUsers) Delete(ctx context.Context, caller *service.Caller, id uuid.UUID) error {
	s.caller, s.deletedID = caller, id
	return s.err
}

func (s *stubUsers) AttachDocument(ctx context.Context, caller *service.Caller, id uuid.UUID, body []byte, filename string) (string, error) {
	s.caller, s.docBody, s.docName = caller, body, filename
	return "https://docs.exemplo.gov.br/" + filename, s.err
}

type stubAudit struct {
	query   service.AuditQuery
	entries []repo.AuditEntry
	err     error
}

func (s *stubAudit) List(ctx context.Context, query service.AuditQuery) ([]repo.AuditEntry, error) {
	s.query = query
	return s.entries, s.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

type stubRedis struct{ err error }

func (p stubRedis) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", p.err)
}

type fixture struct {
	auth   *stubAuth
	users  *stubUsers
	audit  *stubAudit
	jwt    *auth.JWTManager
	router http.Handler
}

func newFixture(t *testing.T, db Pinger) *fixture {
	t.Helper()
	f := &fixture{
		auth:  newStubAuth(),
		users: &stubUsers{},
		audit: &stubAudit{},
		jwt:   auth.NewJWTManager(testSecret, 15*time.Minute),
	}
	cfg := &config.Config{
		IdentityHeader:  "X-User-Id",
		RateLimitPublic: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	f.router = NewRouter(cfg, Deps{
		DB:    db,
		Redis: stubRedis{},
		JWT:   f.jwt,
		Auth:  f.auth,
		Users: f.users,
		Audit: f.audit,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, header map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func asUser(c *service.Caller) map[string]string {
	return map[string]string{"X-User-Id": c.ID.String()}
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t, stubPinger{})
	rec, body := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, body["ok"])

	rec, body = f.do(t, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"ready": true}, body["data"])

	down := newFixture(t, stubPinger{err: errors.New("conexão recusada")})
	rec, body = down.do(t, http.MethodGet, "/ready", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, false, body["ok"])
	require.Equal(t, "conexão recusada", body["details"].(map[string]any)["db"])
}

func TestLoginResponses(t *testing.T) {
	userID := uuid.New()
	tests := []struct {
		name       string
		body       any
		result     *service.LoginResult
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name: "sucesso com flags",
			body: map[string]string{"national_id": "111.222.333-44", "password": "Temp#123"},
			result: &service.LoginResult{
				User:               repo.Usuario{ID: userID, NomeCompleto: "Maria", Cargo: repo.RoleStudentNurse},
				MustChangePassword: true,
				UsingTemporary:     true,
				Token:              &auth.AccessToken{Token: "jwt", ExpiresAt: time.Now().Add(time.Minute)},
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "provisória expirada vira mensagem genérica",
			body:       map[string]string{"national_id": "11122233344", "password": "Xx1$Xx1$Xx1$"},
			err:        service.ErrExpiredProvisional,
			wantStatus: http.StatusUnauthorized,
			wantError:  "credenciais inválidas",
		},
		{
			name:       "senha errada",
			body:       map[string]string{"national_id": "11122233344", "password": "errada"},
			err:        service.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
			wantError:  "credenciais inválidas",
		},
		{
			name:       "campos ausentes",
			body:       map[string]string{"national_id": ""},
			wantStatus: http.StatusBadRequest,
			wantError:  "CPF e senha são obrigatórios",
		},
		{
			name:       "erro inesperado não vaza detalhes",
			body:       map[string]string{"national_id": "11122233344", "password": "x"},
			err:        fmt.Errorf("pgx: %w", errors.New("conn reset by peer")),
			wantStatus: http.StatusInternalServerError,
			wantError:  "erro interno",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubPinger{})
			f.auth.loginResult, f.auth.loginErr = tt.result, tt.err

			rec, body := f.do(t, http.MethodPost, "/auth/login", tt.body, nil)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				require.Equal(t, false, body["ok"])
				require.Equal(t, tt.wantError, body["error"])
				return
			}
			require.Equal(t, true, body["ok"])
			require.NotContains(t, body, "must_change_password")
			data := body["data"].(map[string]any)
			require.Equal(t, userID.String(), data["id"])
			require.Equal(t, "Maria", data["full_name"])
			require.Equal(t, true, data["must_change_password"])
			require.Equal(t, false, data["password_expired"])
			require.Equal(t, true, data["using_temporary"])
			require.Equal(t, "jwt", data["access_token"])
			require.NotContains(t, data, "Credencial")
		})
	}
}

func TestRecoverPassword(t *testing.T) {
	f := newFixture(t, stubPinger{})
	rec, body := f.do(t, http.MethodPost, "/auth/recover-password",
		map[string]string{"national_id": "11122233344", "birth_date": "1990-05-17"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	require.Len(t, data["provisional_password"], 12)
	require.Equal(t, float64(24), data["validity_hours"])
	require.Equal(t, "2026-03-02T10:00:00Z", data["expires_at"])

	f.auth.recoverErr = service.ErrNotFound
	rec, body = f.do(t, http.MethodPost, "/auth/recover-password",
		map[string]string{"national_id": "11122233344", "birth_date": "1990-01-01"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NOT_FOUND", body["code"])
}

func TestPublicAuthRoutesIgnoreStaleSession(t *testing.T) {
	f := newFixture(t, stubPinger{})
	maria := f.auth.add(repo.RoleStudentNurse)
	f.auth.loginResult = &service.LoginResult{User: repo.Usuario{ID: maria.ID, NomeCompleto: "Maria"}}

	expired, err := f.jwt.GenerateAccessToken(maria.ID.String(), string(maria.Role), time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	revoked, err := f.jwt.GenerateAccessToken(maria.ID.String(), string(maria.Role), time.Now())
	require.NoError(t, err)
	f.auth.revoked[revoked.ID] = true

	headers := []map[string]string{
		{"Authorization": "Bearer " + expired.Token},
		{"Authorization": "Bearer " + revoked.Token},
		{"Authorization": "Bearer lixo"},
		{"X-User-Id": uuid.NewString()},
	}
	for _, header := range headers {
		rec, body := f.do(t, http.MethodPost, "/auth/login",
			map[string]string{"national_id": "11122233344", "password": "Temp#123"}, header)
		require.Equal(t, http.StatusOK, rec.Code, body)
		require.Equal(t, maria.ID.String(), body["data"].(map[string]any)["id"])

		rec, body = f.do(t, http.MethodPost, "/auth/recover-password",
			map[string]string{"national_id": "11122233344", "birth_date": "1990-05-17"}, header)
		require.Equal(t, http.StatusOK, rec.Code, body)
	}

	// rotas que dependem do chamador continuam rejeitando o token vencido
	rec, body := f.do(t, http.MethodPost, "/auth/logout",
		map[string]string{"user_id": maria.ID.String()}, headers[0])
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token inválido", body["error"])
}

func TestAdminResetPasswordGuard(t *testing.T) {
	f := newFixture(t, stubPinger{})
	admin := f.auth.add(repo.RoleAdministrator)
	visitor := f.auth.add(repo.RoleVisitor)
	target := uuid.New()
	path := "/auth/admin-reset-password/" + target.String()
	payload := map[string]string{"new_password": "Nova#Senha2026"}

	rec, body := f.do(t, http.MethodPost, path, payload, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH", body["code"])

	rec, body = f.do(t, http.MethodPost, path, payload, asUser(visitor))
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", body["code"])
	require.Nil(t, f.auth.resetCaller)

	rec, _ = f.do(t, http.MethodPost, path, payload, map[string]string{"X-User-Id": uuid.NewString()})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, path, payload, asUser(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, admin.ID, f.auth.resetCaller.ID)
	require.Equal(t, target, f.auth.resetTarget)
}

func TestIdentitySources(t *testing.T) {
	f := newFixture(t, stubPinger{})
	coord := f.auth.add(repo.RoleCoordinator)

	rec, _ := f.do(t, http.MethodGet, "/users?acting_user_id="+coord.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, coord.ID, f.users.caller.ID)

	rec, body := f.do(t, http.MethodPost, "/users", map[string]any{
		"acting_user_id": coord.ID.String(),
		"full_name":      "Nova Aluna",
		"national_id":    "11122233344",
		"role":           "Student-Nurse",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, body)
	require.Equal(t, coord.ID, f.users.caller.ID)
	// o corpo continua disponível para o handler
	require.Equal(t, "Nova Aluna", f.users.created.FullName)
	require.Equal(t, "Student-Nurse", f.users.created.Role)

	rec, _ = f.do(t, http.MethodGet, "/users", nil, map[string]string{"X-User-Id": "nao-e-uuid"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/users", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	student := f.auth.add(repo.RoleStudentNurse)
	rec, _ = f.do(t, http.MethodGet, "/users", nil, asUser(student))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBearerIdentityAndRevocation(t *testing.T) {
	f := newFixture(t, stubPinger{})
	coord := f.auth.add(repo.RoleCoordinator)
	token, err := f.jwt.GenerateAccessToken(coord.ID.String(), string(coord.Role), time.Now())
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token.Token}

	rec, _ := f.do(t, http.MethodGet, "/audit-log", nil, bearer)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/auth/logout", map[string]string{"user_id": coord.ID.String()}, bearer)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, coord.ID, f.auth.logoutUser)
	require.Equal(t, token.ID, f.auth.logoutBy.TokenID)

	f.auth.revoked[token.ID] = true
	rec, body := f.do(t, http.MethodGet, "/audit-log", nil, bearer)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "token inválido", body["error"])

	rec, _ = f.do(t, http.MethodGet, "/audit-log", nil, map[string]string{"Authorization": "Bearer lixo"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, stubPinger{})
	maria := f.auth.add(repo.RoleStudentNurse)
	other := f.auth.add(repo.RoleVisitor)

	payload := map[string]string{"user_id": maria.ID.String(), "new_password": "Nova#Senha2026"}
	rec, body := f.do(t, http.MethodPost, "/auth/change-password", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	require.Equal(t, "senha alterada com sucesso", data["message"])
	require.Equal(t, maria.ID.String(), data["user"].(map[string]any)["id"])

	rec, _ = f.do(t, http.MethodPost, "/auth/change-password", payload, asUser(other))
	require.Equal(t, http.StatusForbidden, rec.Code)

	f.auth.changeErr = service.ErrInvalidCredentials
	rec, _ = f.do(t, http.MethodPost, "/auth/change-password", payload, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/auth/change-password", map[string]string{"user_id": "x"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserErrorMapping(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantDetails map[string]any
	}{
		{"duplicado", &service.DuplicateIdentityError{Field: repo.FieldEmail}, http.StatusConflict, "CONFLICT", map[string]any{"field": "email"}},
		{"validação", &service.ValidationError{Message: "dados inválidos", Fields: map[string]string{"role": "cargo inválido"}}, http.StatusBadRequest, "VALIDATION", map[string]any{"role": "cargo inválido"}},
		{"proibido", service.ErrForbidden, http.StatusForbidden, "FORBIDDEN", nil},
		{"inexistente", fmt.Errorf("carregar: %w", service.ErrNotFound), http.StatusNotFound, "NOT_FOUND", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, stubPinger{})
			admin := f.auth.add(repo.RoleAdministrator)
			f.users.err = tt.err

			rec, body := f.do(t, http.MethodPost, "/users", map[string]string{"full_name": "X"}, asUser(admin))
			require.Equal(t, tt.wantStatus, rec.Code)
			require.Equal(t, false, body["ok"])
			require.Equal(t, tt.wantCode, body["code"])
			if tt.wantDetails != nil {
				require.Equal(t, tt.wantDetails, body["details"])
			} else {
				require.NotContains(t, body, "details")
			}
		})
	}
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t, stubPinger{})
	admin := f.auth.add(repo.RoleAdministrator)
	instr := f.auth.add(repo.RoleInstructorNurse)
	id := uuid.New()

	rec, _ := f.do(t, http.MethodGet, "/users?search=maria&role=Student-Nurse&page=2&per_page=50", nil, asUser(instr))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.ListUsersInput{Search: "maria", Role: "Student-Nurse", Page: 2, PerPage: 50}, f.users.listed)

	rec, _ = f.do(t, http.MethodGet, "/users?page=abc", nil, asUser(instr))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/users/"+id.String(), nil, asUser(instr))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodGet, "/users/123", nil, asUser(instr))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/users/"+id.String(), map[string]string{"phone": "81999990000"}, asUser(instr))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/users/"+id.String()+"/status", map[string]string{"status": "locked"}, asUser(instr))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/users/"+id.String()+"/status", map[string]string{"status": "locked"}, asUser(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "locked", f.users.status)

	rec, _ = f.do(t, http.MethodDelete, "/users/"+id.String(), nil, asUser(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, id, f.users.deletedID)
}

func uploadRequest(t *testing.T, path string, caller *service.Caller, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", caller.ID.String())
	return req
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t, stubPinger{})
	coord := f.auth.add(repo.RoleCoordinator)
	path := "/users/" + uuid.NewString() + "/documents"

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, path, coord, "diploma.pdf", []byte("%PDF-1.4 conteúdo")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "diploma.pdf", f.users.docName)
	require.True(t, strings.HasPrefix(string(f.users.docBody), "%PDF-1.4"))
	require.Contains(t, rec.Body.String(), "https://docs.exemplo.gov.br/diploma.pdf")

	f.users.err = service.ErrNoSpecializedRecord
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, uploadRequest(t, path, coord, "diploma.pdf", []byte("%PDF-1.4")))
	require.Equal(t, http.StatusNotFound, rec.Code)

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", coord.ID.String())
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditLogQuery(t *testing.T) {
	f := newFixture(t, stubPinger{})
	coord := f.auth.add(repo.RoleCoordinator)
	userID := uuid.New()
	f.audit.entries = []repo.AuditEntry{{ID: "01J", Acao: repo.ActionLogin, UsuarioNome: "Ana"}}

	rec, body := f.do(t, http.MethodGet, "/audit-log?limit=10&action=login&user_id="+userID.String(), nil, asUser(coord))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, service.AuditQuery{UserID: &userID, Action: "login", Limit: 10}, f.audit.query)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	require.Equal(t, "Ana", items[0].(map[string]any)["acting_user_name"])

	rec, _ = f.do(t, http.MethodGet, "/audit-log?user_id=abc", nil, asUser(coord))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.audit.err = &service.ValidationError{Message: "ação inválida"}
	rec, body = f.do(t, http.MethodGet, "/audit-log?action=apagar", nil, asUser(coord))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "ação inválida", body["error"])
}
