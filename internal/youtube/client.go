// Package youtube talks to the third-party video host: resumable uploads and
// playlist management on behalf of a user's bearer token.
package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	DefaultAPIBase    = "https://youtube.googleapis.com/"
	DefaultUploadURL  = "https://www.googleapis.com/upload/youtube/v3/videos"
	DefaultWatchBase  = "https://www.youtube.com/watch?v="
	DefaultCategoryID = "27" // Education

	defaultPlaylistPageSize = 50
)

type Config struct {
	APIBase          string
	UploadURL        string
	WatchBase        string
	PlaylistPageSize int64
	HTTPClient       *http.Client
	Logger           zerolog.Logger
}

// Metadata describes the video being created by InitiateResumable.
type Metadata struct {
	Title       string
	Description string
	CategoryID  string
	Tags        []string
	MadeForKids bool
	Privacy     string
}

type Client struct {
	cfg    Config
	http   *http.Client
	locks  *nameLocks
	logger zerolog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	setDefaults(&cfg)
	if _, err := url.Parse(cfg.UploadURL); err != nil {
		return nil, fmt.Errorf("invalid upload url: %w", err)
	}
	if !strings.HasSuffix(cfg.APIBase, "/") {
		cfg.APIBase += "/"
	}
	return &Client{
		cfg:    cfg,
		http:   cfg.HTTPClient,
		locks:  newNameLocks(),
		logger: cfg.Logger.With().Str("component", "youtube_client").Logger(),
	}, nil
}

func setDefaults(cfg *Config) {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.WatchBase == "" {
		cfg.WatchBase = DefaultWatchBase
	}
	if cfg.PlaylistPageSize <= 0 {
		cfg.PlaylistPageSize = defaultPlaylistPageSize
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
}

// WatchURL is the canonical public URL for a hosted video.
func (c *Client) WatchURL(videoID string) string {
	return c.cfg.WatchBase + videoID
}

// InitiateResumable opens an upload session and returns its URL.
func (c *Client) InitiateResumable(ctx context.Context, meta Metadata, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing access token", ErrInitiation)
	}

	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       meta.Title,
			Description: meta.Description,
			CategoryId:  meta.CategoryID,
			Tags:        meta.Tags,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           meta.Privacy,
			MadeForKids:             meta.MadeForKids,
			SelfDeclaredMadeForKids: meta.MadeForKids,
			ForceSendFields:         []string{"MadeForKids", "SelfDeclaredMadeForKids"},
		},
	}
	body, err := json.Marshal(video)
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %v", ErrInitiation, err)
	}

	u, _ := url.Parse(c.cfg.UploadURL)
	q := u.Query()
	q.Set("part", "snippet,status")
	q.Set("uploadType", "resumable")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrInitiation, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := c.authorized(ctx, token).Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInitiation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", newHostError(ErrInitiation, resp.StatusCode, raw)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", newHostError(ErrInitiation, resp.StatusCode, []byte("missing Location header"))
	}
	return location, nil
}

// Transfer sends the whole payload to an upload session and returns the
// host-assigned video id.
func (c *Client) Transfer(ctx context.Context, sessionURL string, data []byte, size int64) (string, error) {
	if size <= 0 {
		size = int64(len(data))
	}
	if size != int64(len(data)) {
		return "", fmt.Errorf("%w: declared size %d does not match payload size %d", ErrTransfer, size, len(data))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrTransfer, err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrTransfer, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", newHostError(ErrTransfer, resp.StatusCode, raw)
	}

	var video yt.Video
	if err := json.Unmarshal(raw, &video); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrTransfer, err)
	}
	if video.Id == "" {
		return "", newHostError(ErrTransfer, resp.StatusCode, []byte("missing video id"))
	}
	return video.Id, nil
}

// ResolveOrCreatePlaylist returns the id of the account's playlist titled name,
// creating it when absent. An empty id with a nil error means the host refused
// to create it; errors are reserved for failures to look at all.
func (c *Client) ResolveOrCreatePlaylist(ctx context.Context, name, token string) (string, error) {
	unlock := c.locks.lock(name)
	defer unlock()

	logger := c.logger.With().Str("playlist", name).Logger()

	svc, err := c.service(ctx, token)
	if err != nil {
		return "", err
	}

	list, err := svc.Playlists.List([]string{"snippet"}).
		Mine(true).
		MaxResults(c.cfg.PlaylistPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return "", playlistError(err)
	}

	for _, item := range list.Items {
		if item.Snippet != nil && item.Snippet.Title == name {
			logger.Debug().Str("playlist_id", item.Id).Msg("playlist found")
			return item.Id, nil
		}
	}

	created, err := svc.Playlists.Insert([]string{"snippet", "status"}, &yt.Playlist{
		Snippet: &yt.PlaylistSnippet{
			Title:       name,
			Description: fmt.Sprintf("Playlist created with name %s via lesson uploads", name),
		},
		Status: &yt.PlaylistStatus{PrivacyStatus: "public"},
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			logger.Warn().Int("status", apiErr.Code).Str("body", apiErr.Body).Msg("playlist create rejected")
			return "", nil
		}
		return "", playlistError(err)
	}

	logger.Info().Str("playlist_id", created.Id).Msg("playlist created")
	return created.Id, nil
}

// AttachToPlaylist appends a video to a playlist. A host rejection is reported
// as false with a nil error.
func (c *Client) AttachToPlaylist(ctx context.Context, playlistID, videoID, token string) (bool, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return false, err
	}

	_, err = svc.PlaylistItems.Insert([]string{"snippet"}, &yt.PlaylistItem{
		Snippet: &yt.PlaylistItemSnippet{
			PlaylistId: playlistID,
			ResourceId: &yt.ResourceId{
				Kind:    "youtube#video",
				VideoId: videoID,
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			c.logger.Warn().
				Str("playlist_id", playlistID).
				Str("video_id", videoID).
				Int("status", apiErr.Code).
				Str("body", apiErr.Body).
				Msg("playlist attach rejected")
			return false, nil
		}
		return false, playlistError(err)
	}
	return true, nil
}

func (c *Client) service(ctx context.Context, token string) (*yt.Service, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: missing access token", ErrPlaylist)
	}
	svc, err := yt.NewService(ctx,
		option.WithHTTPClient(c.authorized(ctx, token)),
		option.WithEndpoint(c.cfg.APIBase),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create service: %v", ErrPlaylist, err)
	}
	svc.BasePath = c.cfg.APIBase
	return svc, nil
}

// authorized wraps the base client with a static bearer token.
func (c *Client) authorized(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
	}))
}

func playlistError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return newHostError(ErrPlaylist, apiErr.Code, []byte(apiErr.Body))
	}
	return fmt.Errorf("%w: %w", ErrPlaylist, err)
}
