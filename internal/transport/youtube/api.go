package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

// errNoLiveChat means the channel has no active broadcast with chat.
var errNoLiveChat = errors.New("youtube: no active live chat")

// chatAPI is the part of the Data API the adapter uses.
type chatAPI interface {
	ResolveChatID(ctx context.Context, channelID string) (string, error)
	List(ctx context.Context, chatID, pageToken string, max int64) (*yt.LiveChatMessageListResponse, error)
	Insert(ctx context.Context, chatID, text string) error
}

type apiClient struct {
	svc *yt.Service
}

// newAPI builds a Data API client. With a refresh token the client can
// post messages; with only an API key it is read-only.
func newAPI(ctx context.Context, cfg Config, extra ...option.ClientOption) (*apiClient, bool, error) {
	var (
		opts     []option.ClientOption
		writable bool
	)
	switch {
	case cfg.canWrite():
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{yt.YoutubeForceSslScope},
		}
		ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
		opts = append(opts, option.WithTokenSource(ts))
		writable = true
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, false, errors.New("youtube: YOUTUBE_API_KEY or OAuth credentials required")
	}
	svc, err := yt.NewService(ctx, append(opts, extra...)...)
	if err != nil {
		return nil, false, fmt.Errorf("youtube service: %w", err)
	}
	return &apiClient{svc: svc}, writable, nil
}

func (c *apiClient) ResolveChatID(ctx context.Context, channelID string) (string, error) {
	search, err := c.svc.Search.List([]string{"id"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(5).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("search live broadcast: %w", err)
	}
	for _, it := range search.Items {
		if it.Id == nil || it.Id.VideoId == "" {
			continue
		}
		vids, err := c.svc.Videos.List([]string{"liveStreamingDetails"}).Id(it.Id.VideoId).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("video %s: %w", it.Id.VideoId, err)
		}
		for _, v := range vids.Items {
			if v.LiveStreamingDetails != nil && v.LiveStreamingDetails.ActiveLiveChatId != "" {
				return v.LiveStreamingDetails.ActiveLiveChatId, nil
			}
		}
	}
	return "", errNoLiveChat
}

func (c *apiClient) List(ctx context.Context, chatID, pageToken string, max int64) (*yt.LiveChatMessageListResponse, error) {
	call := c.svc.LiveChatMessages.List(chatID, []string{"id", "snippet", "authorDetails"}).
		MaxResults(max).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

func (c *apiClient) Insert(ctx context.Context, chatID, text string) error {
	msg := &yt.LiveChatMessage{Snippet: &yt.LiveChatMessageSnippet{
		LiveChatId:         chatID,
		Type:               "textMessageEvent",
		TextMessageDetails: &yt.LiveChatTextMessageDetails{MessageText: text},
	}}
	_, err := c.svc.LiveChatMessages.Insert([]string{"snippet"}, msg).Context(ctx).Do()
	return err
}

// chatGone reports API errors that mean the chat id is no longer usable.
func chatGone(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusNotFound {
		return true
	}
	for _, e := range gerr.Errors {
		if e.Reason == "liveChatEnded" || e.Reason == "liveChatNotFound" || e.Reason == "liveChatDisabled" {
			return true
		}
	}
	return false
}

// quotaExceeded reports a daily-quota refusal.
func quotaExceeded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, e := range gerr.Errors {
		if e.Reason == "quotaExceeded" || e.Reason == "rateLimitExceeded" {
			return true
		}
	}
	return false
}
