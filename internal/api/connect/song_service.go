// Package connect provides Connect RPC service implementations.
package connect

import (
	"context"
	"strings"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/osa030/songbox/internal/app/provider"
	"github.com/osa030/songbox/internal/domain/song"
)

// SongProvider is the part of the provider the song service exposes.
type SongProvider interface {
	Search(ctx context.Context, query string) []song.Song
	Lookup(ctx context.Context, id string) (song.Song, error)
}

// SongService implements the SongService RPC.
type SongService struct {
	provider SongProvider
}

// NewSongService creates a new SongService.
func NewSongService(p SongProvider) *SongService {
	return &SongService{provider: p}
}

// Search returns the songs matching the query as a list of song structs.
func (s *SongService) Search(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.ListValue], error) {
	query := strings.TrimSpace(req.Msg.GetValue())
	if query == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("query is required"))
	}

	songs := s.provider.Search(ctx, query)
	list := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(songs))}
	for _, sg := range songs {
		st, err := SongToStruct(sg)
		if err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		list.Values = append(list.Values, structpb.NewStructValue(st))
	}

	return connect.NewResponse(list), nil
}

// Lookup returns the song with the given ID.
func (s *SongService) Lookup(
	ctx context.Context,
	req *connect.Request[wrapperspb.StringValue],
) (*connect.Response[structpb.Struct], error) {
	id := strings.TrimSpace(req.Msg.GetValue())
	if id == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("song id is required"))
	}

	sg, err := s.provider.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, provider.ErrNoSuchSong) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	st, err := SongToStruct(sg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(st), nil
}

// SongToStruct converts a song to its wire representation.
func SongToStruct(s song.Song) (*structpb.Struct, error) {
	var art any
	if s.AlbumArtURL != nil {
		art = *s.AlbumArtURL
	}
	st, err := structpb.NewStruct(map[string]any{
		"id":               s.ID,
		"title":            s.Title,
		"description":      s.Description,
		"duration_seconds": s.DurationSeconds,
		"album_art_url":    art,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode song %s", s.ID)
	}
	return st, nil
}

// SongFromStruct converts the wire representation back to a song.
func SongFromStruct(st *structpb.Struct) song.Song {
	f := st.GetFields()
	s := song.Song{
		ID:              f["id"].GetStringValue(),
		Title:           f["title"].GetStringValue(),
		Description:     f["description"].GetStringValue(),
		DurationSeconds: int(f["duration_seconds"].GetNumberValue()),
	}
	if v, ok := f["album_art_url"].GetKind().(*structpb.Value_StringValue); ok {
		url := v.StringValue
		s.AlbumArtURL = &url
	}
	return s
}
