// Package jellyfin talks to a Jellyfin server's REST API on behalf of linked users
package jellyfin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	lru "github.com/hashicorp/golang-lru"

	"github.com/wrale/alexa-media-skill/internal/media"
)

const (
	clientName    = "Alexa Skill"
	clientVersion = "1.0.0"

	defaultTimeout   = 10 * time.Second
	defaultCacheSize = 512

	// ticksPerMs converts milliseconds to the server's 100ns ticks
	ticksPerMs = 10_000
)

var (
	_ media.Library       = (*Client)(nil)
	_ media.Tracker       = (*Client)(nil)
	_ media.Authenticator = (*Client)(nil)
)

// Client implements the media interfaces over HTTP
type Client struct {
	http     *resty.Client
	items    *lru.Cache
	deviceID string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetBaseURL(c.http.BaseURL)
	}
}

// WithDeviceID sets the device id reported during login
func WithDeviceID(id string) Option {
	return func(c *Client) {
		c.deviceID = id
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, cacheSize int, opts ...Option) (*Client, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating item cache: %w", err)
	}

	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(defaultTimeout),
		items:    cache,
		deviceID: "alexa-media-skill",
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetHeader("Accept", "application/json")
	return c, nil
}

// authorization builds the MediaBrowser authorization header value
func (c *Client) authorization(token string) string {
	v := fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		clientName, clientName, c.deviceID, clientVersion)
	if token != "" {
		v += fmt.Sprintf(`, Token="%s"`, token)
	}
	return v
}

func (c *Client) request(ctx context.Context, p media.Principal) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.authorization(p.Token))
}

// check turns a transport error or non-2xx response into an error
func check(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, media.ErrNotFound)
	case resp.StatusCode() == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", op, media.ErrInvalidCredentials)
	case resp.IsError():
		return &StatusError{Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	return nil
}

// StatusError is an unexpected response from the server
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: server returned status %d: %s", e.Op, e.Status, e.Body)
}

type authRequest struct {
	Username string `json:"Username"`
	Pw       string `json:"Pw"`
}

type authResponse struct {
	AccessToken string `json:"AccessToken"`
	User        struct {
		ID string `json:"Id"`
	} `json:"User"`
}

// Authenticate logs in by name and returns the user's id and access token
func (c *Client) Authenticate(ctx context.Context, username, password string) (*media.AuthResult, error) {
	var out authResponse
	resp, err := c.request(ctx, media.Principal{}).
		SetBody(authRequest{Username: username, Pw: password}).
		SetResult(&out).
		Post("/Users/AuthenticateByName")
	if err := check("authenticating", resp, err); err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusBadRequest {
			return nil, media.ErrInvalidCredentials
		}
		return nil, err
	}
	if out.AccessToken == "" || out.User.ID == "" {
		return nil, fmt.Errorf("authenticating: incomplete response")
	}
	return &media.AuthResult{UserID: out.User.ID, AccessToken: out.AccessToken}, nil
}

type itemsResponse struct {
	Items            []media.Item `json:"Items"`
	TotalRecordCount int          `json:"TotalRecordCount"`
}

func queryParams(q media.Query) map[string]string {
	params := map[string]string{
		"Recursive": strconv.FormatBool(q.Recursive),
	}
	if q.Term != "" {
		params["searchTerm"] = q.Term
	}
	if len(q.ItemTypes) > 0 {
		params["IncludeItemTypes"] = strings.Join(q.ItemTypes, ",")
	}
	if len(q.MediaTypes) > 0 {
		params["MediaTypes"] = strings.Join(q.MediaTypes, ",")
	}
	if len(q.ArtistIDs) > 0 {
		params["ArtistIds"] = strings.Join(q.ArtistIDs, ",")
	}
	if q.ParentID != "" {
		params["ParentId"] = q.ParentID
	}
	if q.IsFavorite {
		params["IsFavorite"] = "true"
	}
	if q.SortByDateCreated {
		params["SortBy"] = "DateCreated"
		params["SortOrder"] = "Descending"
	}
	if q.Limit > 0 {
		params["Limit"] = strconv.Itoa(q.Limit)
	}
	return params
}

// Search lists the items visible to p that match q. Results are cached for GetItem.
func (c *Client) Search(ctx context.Context, p media.Principal, q media.Query) ([]media.Item, error) {
	var out itemsResponse
	resp, err := c.request(ctx, p).
		SetPathParam("userId", p.UserID).
		SetQueryParams(queryParams(q)).
		SetResult(&out).
		Get("/Users/{userId}/Items")
	if err := check("searching items", resp, err); err != nil {
		return nil, err
	}
	for _, it := range out.Items {
		c.items.Add(cacheKey(p.UserID, it.ID), it)
	}
	return out.Items, nil
}

// GetItem loads one item, from the cache when possible
func (c *Client) GetItem(ctx context.Context, p media.Principal, id string) (*media.Item, error) {
	key := cacheKey(p.UserID, id)
	if v, ok := c.items.Get(key); ok {
		it := v.(media.Item)
		return &it, nil
	}

	var it media.Item
	resp, err := c.request(ctx, p).
		SetPathParams(map[string]string{"userId": p.UserID, "itemId": id}).
		SetResult(&it).
		Get("/Users/{userId}/Items/{itemId}")
	if err := check("loading item", resp, err); err != nil {
		return nil, err
	}
	c.items.Add(key, it)
	return &it, nil
}

// SetFavorite marks or unmarks an item as a favorite of p
func (c *Client) SetFavorite(ctx context.Context, p media.Principal, id string, favorite bool) error {
	req := c.request(ctx, p).
		SetPathParams(map[string]string{"userId": p.UserID, "itemId": id})

	const path = "/Users/{userId}/FavoriteItems/{itemId}"
	var (
		resp *resty.Response
		err  error
	)
	if favorite {
		resp, err = req.Post(path)
	} else {
		resp, err = req.Delete(path)
	}
	return check("setting favorite", resp, err)
}

type playbackInfo struct {
	ItemID        string `json:"ItemId"`
	PositionTicks int64  `json:"PositionTicks"`
	IsPaused      bool   `json:"IsPaused"`
	CanSeek       bool   `json:"CanSeek"`
	PlayMethod    string `json:"PlayMethod"`
	PlaySessionID string `json:"PlaySessionId,omitempty"`
}

func toPlaybackInfo(ev media.PlaybackEvent) playbackInfo {
	return playbackInfo{
		ItemID:        ev.ItemID,
		PositionTicks: ev.PositionMs * ticksPerMs,
		IsPaused:      ev.IsPaused,
		CanSeek:       true,
		PlayMethod:    "Transcode",
		PlaySessionID: ev.DeviceID,
	}
}

// OnPlaybackStart reports that a device started playing an item
func (c *Client) OnPlaybackStart(ctx context.Context, p media.Principal, ev media.PlaybackEvent) error {
	resp, err := c.request(ctx, p).
		SetBody(toPlaybackInfo(ev)).
		Post("/Sessions/Playing")
	return check("reporting playback start", resp, err)
}

// OnPlaybackProgress reports position and pause state
func (c *Client) OnPlaybackProgress(ctx context.Context, p media.Principal, ev media.PlaybackEvent) error {
	resp, err := c.request(ctx, p).
		SetBody(toPlaybackInfo(ev)).
		Post("/Sessions/Playing/Progress")
	return check("reporting playback progress", resp, err)
}

// CheckHealth pings the server's public info endpoint
func (c *Client) CheckHealth(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/System/Info/Public")
	return check("checking media server", resp, err)
}

func cacheKey(userID, itemID string) string {
	return userID + "/" + itemID
}
