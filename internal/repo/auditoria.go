package repo

import (
	"context"
	"fmt"
	"strings"
)

// InsertAuditEntry anexa uma entrada ao log de auditoria.
func (q *Queries) InsertAuditEntry(ctx context.Context, e AuditEntry) error {
	const query = `
		INSERT INTO logs_auditoria (
			id, usuario_id, acao, tabela_afetada, registro_id, descricao,
			dados_anteriores, dados_novos, ip_address, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8, NULLIF($9, ''), $10)`

	_, err := q.db.Exec(ctx, query,
		e.ID, e.UsuarioID, string(e.Acao), e.TabelaAfetada, e.RegistroID, e.Descricao,
		nullableJSON(e.DadosAnteriores), nullableJSON(e.DadosNovos), e.IPAddress, e.CreatedAt,
	)
	return err
}

// ListAuditEntries devolve as entradas mais recentes primeiro, com o nome do autor.
func (q *Queries) ListAuditEntries(ctx context.Context, filter AuditFilter) ([]AuditEntry, error) {
	var (
		conds []string
		args  []any
	)
	if filter.UsuarioID != nil {
		args = append(args, *filter.UsuarioID)
		conds = append(conds, fmt.Sprintf("l.usuario_id = $%d", len(args)))
	}
	if filter.Acao != "" {
		args = append(args, string(filter.Acao))
		conds = append(conds, fmt.Sprintf("l.acao = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)

	query := `
		SELECT l.id, l.usuario_id, COALESCE(u.nome_completo, ''), l.acao,
		       COALESCE(l.tabela_afetada, ''), COALESCE(l.registro_id, ''), COALESCE(l.descricao, ''),
		       l.dados_anteriores, l.dados_novos, COALESCE(l.ip_address, ''), l.created_at
		  FROM logs_auditoria l
		  LEFT JOIN usuarios u ON u.id = l.usuario_id` + where +
		fmt.Sprintf(" ORDER BY l.created_at DESC, l.id DESC LIMIT $%d", len(args))

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e      AuditEntry
			acao   string
			before []byte
			after  []byte
		)
		if err := rows.Scan(&e.ID, &e.UsuarioID, &e.UsuarioNome, &acao, &e.TabelaAfetada, &e.RegistroID,
			&e.Descricao, &before, &after, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Acao = AuditAction(acao)
		e.DadosAnteriores = before
		e.DadosNovos = after
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
