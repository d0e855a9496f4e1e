package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/decidiu/plataforma/internal/repo"
	"github.com/decidiu/plataforma/internal/util"
)

// AuditEvent descreve uma transição a registrar.
type AuditEvent struct {
	ActorID     *uuid.UUID
	Action      repo.AuditAction
	Table       string
	RecordID    string
	Description string
	Before      any
	After       any
}

// AuditQuery filtra a consulta do log.
type AuditQuery struct {
	UserID *uuid.UUID
	Action string
	Limit  int
}

// AuditLogger anexa entradas imutáveis ao log, sempre na transação da transição auditada.
type AuditLogger struct {
	store        Store
	defaultLimit int
	maxLimit     int
	now          func() time.Time
}

// NewAuditLogger cria o logger de auditoria com limites de paginação.
func NewAuditLogger(store Store, defaultLimit, maxLimit int) *AuditLogger {
	if maxLimit <= 0 {
		maxLimit = 1000
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &AuditLogger{store: store, defaultLimit: defaultLimit, maxLimit: maxLimit, now: util.Now}
}

// Record grava a entrada usando o escopo transacional recebido.
func (a *AuditLogger) Record(ctx context.Context, q AuditStore, ev AuditEvent) error {
	now := a.now()
	entry := repo.AuditEntry{
		ID:            util.NewULID(now),
		UsuarioID:     ev.ActorID,
		Acao:          ev.Action,
		TabelaAfetada: ev.Table,
		RegistroID:    ev.RecordID,
		Descricao:     ev.Description,
		IPAddress:     ClientIP(ctx),
		CreatedAt:     now,
	}

	var err error
	if entry.DadosAnteriores, err = snapshot(ev.Before); err != nil {
		return fmt.Errorf("auditoria: %w", err)
	}
	if entry.DadosNovos, err = snapshot(ev.After); err != nil {
		return fmt.Errorf("auditoria: %w", err)
	}

	if err := q.InsertAuditEntry(ctx, entry); err != nil {
		return fmt.Errorf("auditoria: %w", err)
	}

	event := log.Info().Str("acao", string(ev.Action)).Str("registro_id", ev.RecordID)
	if ev.ActorID != nil {
		event = event.Str("usuario_id", ev.ActorID.String())
	}
	event.Msg("auditoria registrada")
	return nil
}

// List devolve as entradas mais recentes primeiro, respeitando o teto de página.
func (a *AuditLogger) List(ctx context.Context, query AuditQuery) ([]repo.AuditEntry, error) {
	filter := repo.AuditFilter{UsuarioID: query.UserID, Limit: query.Limit}
	if filter.Limit <= 0 {
		filter.Limit = a.defaultLimit
	}
	if filter.Limit > a.maxLimit {
		filter.Limit = a.maxLimit
	}
	if query.Action != "" {
		action, err := repo.ParseAuditAction(query.Action)
		if err != nil {
			return nil, invalidField("action", "ação inválida")
		}
		filter.Acao = action
	}

	entries, err := a.store.Read().ListAuditEntries(ctx, filter)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repo.AuditEntry{}
	}
	return entries, nil
}

func snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func actor(id uuid.UUID) *uuid.UUID {
	return &id
}
