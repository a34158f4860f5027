// Package main provides the song client CLI for testing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apiconnect "github.com/osa030/songbox/internal/api/connect"
	"github.com/osa030/songbox/internal/domain/song"
)

var (
	app        = kingpin.New("songbox-cli", "songbox client for testing")
	server     = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	adminToken = app.Flag("admin-token", "Admin token").Envar("ADMIN_TOKEN").String()

	// search command
	searchCmd   = app.Command("search", "Search songs")
	searchQuery = searchCmd.Arg("query", "Search query").Required().String()

	// lookup command
	lookupCmd = app.Command("lookup", "Look up a song by ID")
	lookupID  = lookupCmd.Arg("song-id", "Spotify track ID").Required().String()

	// invalidate command
	invalidateCmd = app.Command("invalidate", "Drop every cached song (admin)")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch command {
	case searchCmd.FullCommand():
		search(ctx, apiconnect.NewSongServiceClient(http.DefaultClient, *server), *searchQuery)
	case lookupCmd.FullCommand():
		lookup(ctx, apiconnect.NewSongServiceClient(http.DefaultClient, *server), *lookupID)
	case invalidateCmd.FullCommand():
		invalidate(ctx, apiconnect.NewAdminServiceClient(http.DefaultClient, *server))
	}
}

func search(ctx context.Context, client *apiconnect.SongServiceClient, query string) {
	resp, err := client.Search(ctx, connect.NewRequest(wrapperspb.String(query)))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	values := resp.Msg.GetValues()
	if len(values) == 0 {
		fmt.Println("No songs found")
		return
	}
	for i, v := range values {
		fmt.Printf("%2d. %s\n", i+1, formatSong(apiconnect.SongFromStruct(v.GetStructValue())))
	}
}

func lookup(ctx context.Context, client *apiconnect.SongServiceClient, id string) {
	resp, err := client.Lookup(ctx, connect.NewRequest(wrapperspb.String(id)))
	if err != nil {
		if connect.CodeOf(err) == connect.CodeNotFound {
			fmt.Printf("No such song: %s\n", id)
		} else {
			fmt.Printf("Error: %v\n", err)
		}
		os.Exit(1)
	}

	s := apiconnect.SongFromStruct(resp.Msg)
	fmt.Println(formatSong(s))
	if s.HasAlbumArt() {
		fmt.Printf("    Album art: %s\n", *s.AlbumArtURL)
	}
}

func invalidate(ctx context.Context, client *apiconnect.AdminServiceClient) {
	req := connect.NewRequest(&emptypb.Empty{})
	req.Header().Set(apiconnect.AdminTokenHeader, *adminToken)
	if _, err := client.InvalidateCache(ctx, req); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Song cache invalidated")
}

func formatSong(s song.Song) string {
	return fmt.Sprintf("%s - %s [%d:%02d] (%s)", s.Title, s.Description,
		s.DurationSeconds/60, s.DurationSeconds%60, s.ID)
}
