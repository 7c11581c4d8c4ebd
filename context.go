package mangrove

import (
	"context"

	"github.com/mangrovewatch/mangrove/identity"
)

type clientIPContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. It feeds the per-IP
// throttles and the audit log.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func sessionFromContext(ctx context.Context) (identity.Session, bool) {
	return identity.SessionFromContext(ctx)
}
