package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/decidiu/plataforma/internal/repo"
)

// memState é o conteúdo do banco em memória; cada transação trabalha sobre uma cópia.
type memState struct {
	users   map[uuid.UUID]repo.Usuario
	instr   map[string]repo.Instrutora
	alunas  map[string]repo.Aluna
	entries []repo.AuditEntry
}

func (s *memState) clone() *memState {
	out := &memState{
		users:   make(map[uuid.UUID]repo.Usuario, len(s.users)),
		instr:   make(map[string]repo.Instrutora, len(s.instr)),
		alunas:  make(map[string]repo.Aluna, len(s.alunas)),
		entries: append([]repo.AuditEntry(nil), s.entries...),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.instr {
		out.instr[k] = v
	}
	for k, v := range s.alunas {
		out.alunas[k] = v
	}
	return out
}

// memStore serializa transações com um mutex global e descarta a cópia em caso de erro.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	failAudit error
	txCount   int
}

func newMemStore() *memStore {
	return &memStore{state: &memState{
		users:  map[uuid.UUID]repo.Usuario{},
		instr:  map[string]repo.Instrutora{},
		alunas: map[string]repo.Aluna{},
	}}
}

func (s *memStore) Read() Queries {
	return &memQueries{store: s}
}

func (s *memStore) WithTx(ctx context.Context, fn func(ctx context.Context, q Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCount++
	work := s.state.clone()
	if err := fn(ctx, &memQueries{store: s, tx: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// snapshot devolve uma cópia consistente para asserções.
func (s *memStore) snapshot() *memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) user(id uuid.UUID) repo.Usuario {
	return s.snapshot().users[id]
}

func (s *memStore) actions() []repo.AuditAction {
	var out []repo.AuditAction
	for _, e := range s.snapshot().entries {
		out = append(out, e.Acao)
	}
	return out
}

type memQueries struct {
	store *memStore
	tx    *memState
}

// st devolve o estado visível: a cópia da transação ou o estado confirmado sob lock.
func (q *memQueries) st() (*memState, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.store.mu.Lock()
	return q.store.state, q.store.mu.Unlock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (q *memQueries) GetUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	st, done := q.st()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	return u, nil
}

func (q *memQueries) LockUsuario(ctx context.Context, id uuid.UUID) (repo.Usuario, error) {
	return q.GetUsuario(ctx, id)
}

func (q *memQueries) LockUsuarioByCPF(ctx context.Context, cpf string) (repo.Usuario, error) {
	st, done := q.st()
	defer done()
	for _, u := range st.users {
		if u.CPF == cpf {
			return u, nil
		}
	}
	return repo.Usuario{}, repo.ErrNotFound
}

func (q *memQueries) FindIdentityConflict(ctx context.Context, email, cpf string, exclude *uuid.UUID) (string, error) {
	st, done := q.st()
	defer done()
	field := ""
	for _, u := range st.users {
		if exclude != nil && u.ID == *exclude {
			continue
		}
		if cpf != "" && u.CPF == cpf {
			return repo.FieldCPF, nil
		}
		if strings.EqualFold(u.Email, email) {
			field = repo.FieldEmail
		}
	}
	return field, nil
}

func (q *memQueries) InsertUsuario(ctx context.Context, arg repo.InsertUsuarioParams) (repo.Usuario, error) {
	st, done := q.st()
	defer done()
	for _, u := range st.users {
		if u.CPF == arg.CPF {
			return repo.Usuario{}, uniqueViolation("usuarios_cpf_key")
		}
		if strings.EqualFold(u.Email, arg.Email) {
			return repo.Usuario{}, uniqueViolation("usuarios_email_key")
		}
	}
	changed, expires := arg.SenhaAlteradaEm, arg.SenhaExpiraEm
	u := repo.Usuario{
		ID:                  arg.ID,
		NomeCompleto:        arg.NomeCompleto,
		Email:               arg.Email,
		CPF:                 arg.CPF,
		Telefone:            arg.Telefone,
		DataNascimento:      arg.DataNascimento,
		Profissao:           arg.Profissao,
		VinculoEmpregaticio: arg.VinculoEmpregaticio,
		Endereco:            arg.Endereco,
		Cargo:               arg.Cargo,
		Status:              repo.StatusActive,
		PrimeiroAcesso:      true,
		CriadoPor:           arg.CriadoPor,
		Credencial: repo.Credencial{
			SenhaHash:        arg.SenhaHash,
			AlteradaEm:       &changed,
			ExpiraEm:         &expires,
			TrocaObrigatoria: true,
		},
		CreatedAt: arg.Now,
		UpdatedAt: arg.Now,
	}
	st.users[u.ID] = u
	return u, nil
}

func (q *memQueries) UpdatePerfil(ctx context.Context, arg repo.UpdatePerfilParams) (repo.Usuario, error) {
	st, done := q.st()
	defer done()
	u, ok := st.users[arg.ID]
	if !ok {
		return repo.Usuario{}, repo.ErrNotFound
	}
	for _, other := range st.users {
		if other.ID != arg.ID && strings.EqualFold(other.Email, arg.Email) {
			return repo.Usuario{}, uniqueViolation("usuarios_email_key")
		}
	}
	u.NomeCompleto = arg.NomeCompleto
	u.Email = arg.Email
	u.Telefone = arg.Telefone
	u.DataNascimento = arg.DataNascimento
	u.Profissao = arg.Profissao
	u.VinculoEmpregaticio = arg.VinculoEmpregaticio
	u.Endereco = arg.Endereco
	u.UpdatedAt = arg.Now
	st.users[u.ID] = u
	return u, nil
}

func (q *memQueries) ListUsuarios(ctx context.Context, filter repo.UsuarioFilter) ([]repo.Usuario, int, error) {
	st, done := q.st()
	defer done()
	var matched []repo.Usuario
	search := strings.ToLower(filter.Search)
	for _, u := range st.users {
		if filter.Cargo != "" && u.Cargo != filter.Cargo {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.NomeCompleto), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) && !strings.Contains(u.CPF, search) {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return matched[filter.Offset:end], total, nil
}

func (q *memQueries) DeleteUsuario(ctx context.Context, id uuid.UUID) error {
	st, done := q.st()
	defer done()
	if _, ok := st.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(st.users, id)
	for k, in := range st.instr {
		if in.UsuarioID != nil && *in.UsuarioID == id {
			in.UsuarioID = nil
			st.instr[k] = in
		}
	}
	for k, a := range st.alunas {
		if a.UsuarioID != nil && *a.UsuarioID == id {
			a.UsuarioID = nil
			st.alunas[k] = a
		}
	}
	return nil
}

func (q *memQueries) update(id uuid.UUID, fn func(u *repo.Usuario)) error {
	st, done := q.st()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	fn(&u)
	st.users[id] = u
	return nil
}

func (q *memQueries) SetCargo(ctx context.Context, id uuid.UUID, cargo repo.Role) error {
	return q.update(id, func(u *repo.Usuario) { u.Cargo = cargo })
}

func (q *memQueries) SetStatus(ctx context.Context, id uuid.UUID, status repo.Status) error {
	return q.update(id, func(u *repo.Usuario) { u.Status = status })
}

func (q *memQueries) SetPermanentCredential(ctx context.Context, id uuid.UUID, hash string, changedAt, expiresAt time.Time) error {
	return q.update(id, func(u *repo.Usuario) {
		u.Credencial.SenhaHash = hash
		u.Credencial.AlteradaEm = &changedAt
		u.Credencial.ExpiraEm = &expiresAt
		u.PrimeiroAcesso = false
	})
}

func (q *memQueries) SetProvisionalCredential(ctx context.Context, id uuid.UUID, hash *string, expiresAt *time.Time, used bool) error {
	return q.update(id, func(u *repo.Usuario) {
		u.Credencial.ProvisoriaHash = hash
		u.Credencial.ProvisoriaExpiraEm = expiresAt
		u.Credencial.ProvisoriaUsada = used
	})
}

func (q *memQueries) ConsumeProvisional(ctx context.Context, id uuid.UUID) (bool, error) {
	consumed := false
	err := q.update(id, func(u *repo.Usuario) {
		if u.Credencial.ProvisoriaHash != nil && !u.Credencial.ProvisoriaUsada {
			u.Credencial.ProvisoriaUsada = true
			consumed = true
		}
	})
	return consumed, err
}

func (q *memQueries) MarkMustChange(ctx context.Context, id uuid.UUID, must bool) error {
	return q.update(id, func(u *repo.Usuario) { u.Credencial.TrocaObrigatoria = must })
}

func (q *memQueries) UpgradeSenhaHash(ctx context.Context, id uuid.UUID, hash string) error {
	return q.update(id, func(u *repo.Usuario) { u.Credencial.SenhaHash = hash })
}

func (q *memQueries) InsertAuditEntry(ctx context.Context, e repo.AuditEntry) error {
	if q.store.failAudit != nil {
		return q.store.failAudit
	}
	st, done := q.st()
	defer done()
	st.entries = append(st.entries, e)
	return nil
}

func (q *memQueries) ListAuditEntries(ctx context.Context, filter repo.AuditFilter) ([]repo.AuditEntry, error) {
	st, done := q.st()
	defer done()
	var out []repo.AuditEntry
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		if filter.UsuarioID != nil && (e.UsuarioID == nil || *e.UsuarioID != *filter.UsuarioID) {
			continue
		}
		if filter.Acao != "" && e.Acao != filter.Acao {
			continue
		}
		if e.UsuarioID != nil {
			e.UsuarioNome = st.users[*e.UsuarioID].NomeCompleto
		}
		out = append(out, e)
		if len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (q *memQueries) UpsertInstrutora(ctx context.Context, in repo.Instrutora) (repo.Instrutora, error) {
	st, done := q.st()
	defer done()
	if existing, ok := st.instr[in.CPF]; ok {
		in.ID = existing.ID
		in.CreatedAt = existing.CreatedAt
	}
	st.instr[in.CPF] = in
	return in, nil
}

func (q *memQueries) UpsertAluna(ctx context.Context, a repo.Aluna) (repo.Aluna, error) {
	st, done := q.st()
	defer done()
	if a.InstrutoraID != nil {
		found := false
		for _, in := range st.instr {
			if in.ID == *a.InstrutoraID {
				found = true
			}
		}
		if !found {
			return repo.Aluna{}, &pgconn.PgError{Code: "23503"}
		}
	}
	if existing, ok := st.alunas[a.CPF]; ok {
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
		a.CasosConcluidos = existing.CasosConcluidos
		if a.InstrutoraID == nil {
			a.InstrutoraID = existing.InstrutoraID
		}
	}
	st.alunas[a.CPF] = a
	return a, nil
}

func (q *memQueries) SyncInstrutoraSenha(ctx context.Context, usuarioID uuid.UUID, hash string) error {
	st, done := q.st()
	defer done()
	for k, in := range st.instr {
		if in.UsuarioID != nil && *in.UsuarioID == usuarioID {
			in.SenhaHash = hash
			st.instr[k] = in
		}
	}
	return nil
}

func (q *memQueries) GetEspecializado(ctx context.Context, usuarioID uuid.UUID) (repo.Especializado, error) {
	st, done := q.st()
	defer done()
	for _, in := range st.instr {
		if in.UsuarioID != nil && *in.UsuarioID == usuarioID {
			rec := in
			return repo.Especializado{Instrutora: &rec}, nil
		}
	}
	for _, a := range st.alunas {
		if a.UsuarioID != nil && *a.UsuarioID == usuarioID {
			rec := a
			return repo.Especializado{Aluna: &rec}, nil
		}
	}
	return repo.Especializado{}, repo.ErrNotFound
}

func (q *memQueries) SetDocumentoURL(ctx context.Context, kind repo.SpecializedKind, usuarioID uuid.UUID, url string) error {
	st, done := q.st()
	defer done()
	switch kind {
	case repo.SpecializedInstructor:
		for k, in := range st.instr {
			if in.UsuarioID != nil && *in.UsuarioID == usuarioID {
				in.DiplomaURL = url
				st.instr[k] = in
				return nil
			}
		}
	case repo.SpecializedStudent:
		for k, a := range st.alunas {
			if a.UsuarioID != nil && *a.UsuarioID == usuarioID {
				a.CertificadoURL = url
				st.alunas[k] = a
				return nil
			}
		}
	}
	return repo.ErrNotFound
}

var errBoom = errors.New("falha simulada")
