package connect

import (
	"context"
	"crypto/subtle"

	"connectrpc.com/connect"

	"github.com/osa030/songbox/internal/infra/config"
)

const (
	// AdminTokenHeader is the header name for admin authentication token.
	AdminTokenHeader = "X-Admin-Token"
)

// NewAdminAuthInterceptor creates an interceptor that validates admin tokens
// from request metadata for AdminService methods. No token is accepted when
// none is configured.
func NewAdminAuthInterceptor(cfg *config.Config) connect.UnaryInterceptorFunc {
	expected := []byte(cfg.Server.AdminToken)
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token := req.Header().Get(AdminTokenHeader)
			if token == "" || len(expected) == 0 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			if subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				return nil, connect.NewError(connect.CodeUnauthenticated, nil)
			}
			return next(ctx, req)
		}
	}
}
