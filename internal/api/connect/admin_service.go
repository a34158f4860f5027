package connect

import (
	"context"

	"connectrpc.com/connect"
	zlog "github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
)

// CacheInvalidator drops every cached song.
type CacheInvalidator interface {
	InvalidateCache()
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	cache CacheInvalidator
}

// NewAdminService creates a new AdminService.
func NewAdminService(cache CacheInvalidator) *AdminService {
	return &AdminService{cache: cache}
}

// InvalidateCache empties the song cache, deleting the cached files.
func (s *AdminService) InvalidateCache(
	ctx context.Context,
	req *connect.Request[emptypb.Empty],
) (*connect.Response[emptypb.Empty], error) {
	zlog.Info().Msg("invalidating song cache by admin request")
	s.cache.InvalidateCache()
	return connect.NewResponse(&emptypb.Empty{}), nil
}
