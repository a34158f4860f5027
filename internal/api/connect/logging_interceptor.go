package connect

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// RequestIDHeader carries the request identifier; one is generated when the caller sends none.
const RequestIDHeader = "X-Request-ID"

// NewLoggingInterceptor creates an interceptor that tags each call with a
// request ID and logs its outcome.
func NewLoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			requestID := req.Header().Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			procedure := req.Spec().Procedure
			start := time.Now()

			res, err := next(ctx, req)
			elapsed := time.Since(start)
			if err != nil {
				var ce *connect.Error
				if errors.As(err, &ce) {
					ce.Meta().Set(RequestIDHeader, requestID)
				}
				zlog.Warn().Msgf("rpc failed: procedure=%s request_id=%s code=%s elapsed=%s err=%v",
					procedure, requestID, connect.CodeOf(err), elapsed, err)
				return nil, err
			}

			res.Header().Set(RequestIDHeader, requestID)
			zlog.Debug().Msgf("rpc completed: procedure=%s request_id=%s elapsed=%s", procedure, requestID, elapsed)
			return res, nil
		}
	}
}
