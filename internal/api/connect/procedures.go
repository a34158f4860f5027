package connect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// SongServiceName is the fully-qualified name of the song service.
	SongServiceName = "songbox.v1.SongService"
	// AdminServiceName is the fully-qualified name of the admin service.
	AdminServiceName = "songbox.v1.AdminService"
)

// Procedure paths.
const (
	SongServiceSearchProcedure           = "/" + SongServiceName + "/Search"
	SongServiceLookupProcedure           = "/" + SongServiceName + "/Lookup"
	AdminServiceInvalidateCacheProcedure = "/" + AdminServiceName + "/InvalidateCache"
)

// NewSongServiceHandler builds an HTTP handler serving the song service and
// returns the path to mount it on.
func NewSongServiceHandler(svc *SongService, opts ...connect.HandlerOption) (string, http.Handler) {
	search := connect.NewUnaryHandler(SongServiceSearchProcedure, svc.Search, opts...)
	lookup := connect.NewUnaryHandler(SongServiceLookupProcedure, svc.Lookup, opts...)
	return "/" + SongServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case SongServiceSearchProcedure:
			search.ServeHTTP(w, r)
		case SongServiceLookupProcedure:
			lookup.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// NewAdminServiceHandler builds an HTTP handler serving the admin service and
// returns the path to mount it on.
func NewAdminServiceHandler(svc *AdminService, opts ...connect.HandlerOption) (string, http.Handler) {
	invalidate := connect.NewUnaryHandler(AdminServiceInvalidateCacheProcedure, svc.InvalidateCache, opts...)
	return "/" + AdminServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case AdminServiceInvalidateCacheProcedure:
			invalidate.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// SongServiceClient is a client for the song service.
type SongServiceClient struct {
	search *connect.Client[wrapperspb.StringValue, structpb.ListValue]
	lookup *connect.Client[wrapperspb.StringValue, structpb.Struct]
}

// NewSongServiceClient creates a client for the song service at baseURL.
func NewSongServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SongServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &SongServiceClient{
		search: connect.NewClient[wrapperspb.StringValue, structpb.ListValue](httpClient, baseURL+SongServiceSearchProcedure, opts...),
		lookup: connect.NewClient[wrapperspb.StringValue, structpb.Struct](httpClient, baseURL+SongServiceLookupProcedure, opts...),
	}
}

// Search calls songbox.v1.SongService.Search.
func (c *SongServiceClient) Search(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.ListValue], error) {
	return c.search.CallUnary(ctx, req)
}

// Lookup calls songbox.v1.SongService.Lookup.
func (c *SongServiceClient) Lookup(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	return c.lookup.CallUnary(ctx, req)
}

// AdminServiceClient is a client for the admin service.
type AdminServiceClient struct {
	invalidateCache *connect.Client[emptypb.Empty, emptypb.Empty]
}

// NewAdminServiceClient creates a client for the admin service at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	return &AdminServiceClient{
		invalidateCache: connect.NewClient[emptypb.Empty, emptypb.Empty](httpClient, baseURL+AdminServiceInvalidateCacheProcedure, opts...),
	}
}

// InvalidateCache calls songbox.v1.AdminService.InvalidateCache.
func (c *AdminServiceClient) InvalidateCache(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[emptypb.Empty], error) {
	return c.invalidateCache.CallUnary(ctx, req)
}
