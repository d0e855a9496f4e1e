package service

import "context"

type ctxKey int

const clientIPKey ctxKey = iota

// WithClientIP anexa o IP de origem usado nas entradas de auditoria.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP recupera o IP de origem do contexto.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
