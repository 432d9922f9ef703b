// Package workshop talks to the Steam Web API endpoints that describe
// Workshop items and collections.
package workshop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/publicsuffix"

	"github.com/bnema/vpkctl/internal/logger"
)

const (
	// AppID is Left 4 Dead 2's Steam application id
	AppID = 550

	// DefaultBaseURL is the Steam Web API host
	DefaultBaseURL = "https://api.steampowered.com"

	detailsPath    = "/ISteamRemoteStorage/GetPublishedFileDetails/v1/"
	collectionPath = "/ISteamRemoteStorage/GetCollectionDetails/v1/"

	resultOK           = 1
	resultFileNotFound = 9

	fileTypeItem       = 0
	fileTypeCollection = 2
)

var (
	ErrInvalidPublishedFileID = errors.New("invalid published file id")
	ErrRequestFailed          = errors.New("workshop request failed")
)

// Tag is a Workshop tag attached to an item
type Tag struct {
	Tag string `json:"tag"`
}

// PublishedFileDetails is the subset of the details response we use
type PublishedFileDetails struct {
	PublishedFileID       uint64 `json:"publishedfileid,string"`
	Result                int    `json:"result"`
	ConsumerAppID         int    `json:"consumer_app_id"`
	FileURL               string `json:"file_url"`
	PreviewURL            string `json:"preview_url"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	TimeCreated           int64  `json:"time_created"`
	TimeUpdated           int64  `json:"time_updated"`
	Subscriptions         int64  `json:"subscriptions"`
	Favorited             int64  `json:"favorited"`
	LifetimeSubscriptions int64  `json:"lifetime_subscriptions"`
	LifetimeFavorited     int64  `json:"lifetime_favorited"`
	Views                 int64  `json:"views"`
	Tags                  []Tag  `json:"tags"`
}

// CollectionChild is one entry of a collection
type CollectionChild struct {
	PublishedFileID uint64
	IsCollection    bool
}

// Client calls the Steam Web API
type Client struct {
	http      *http.Client
	baseURL   string
	userAgent string
	log       *log.Logger
}

// Options configures a Client
type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
	Logger     *log.Logger
}

// NewClient creates a Workshop API client
func NewClient(opts Options) *Client {
	c := &Client{
		http:      opts.HTTPClient,
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		log:       logger.OrDiscard(opts.Logger),
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	return c
}

// NewHTTPClient returns the client shared by the workshop API and preview
// downloads. Steam sets cookies across its subdomains, so the jar is scoped
// with the public suffix list.
func NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.Jar = jar
	}
	return client
}

type detailsResponse struct {
	Response struct {
		Result               int                    `json:"result"`
		PublishedFileDetails []PublishedFileDetails `json:"publishedfiledetails"`
	} `json:"response"`
}

// GetPublishedFileDetails fetches the details of one item. Items that do not
// exist or belong to another game fail with ErrInvalidPublishedFileID, every
// other failure wraps ErrRequestFailed.
func (c *Client) GetPublishedFileDetails(ctx context.Context, id uint64) (*PublishedFileDetails, error) {
	form := url.Values{}
	form.Set("itemcount", "1")
	form.Set("publishedfileids[0]", strconv.FormatUint(id, 10))

	var resp detailsResponse
	if err := c.post(ctx, detailsPath, form, &resp); err != nil {
		return nil, err
	}

	if len(resp.Response.PublishedFileDetails) != 1 {
		return nil, fmt.Errorf("%w: expected 1 result, got %d", ErrRequestFailed, len(resp.Response.PublishedFileDetails))
	}

	details := resp.Response.PublishedFileDetails[0]
	switch details.Result {
	case resultOK:
		if details.ConsumerAppID != AppID {
			return nil, fmt.Errorf("%w: %d belongs to app %d", ErrInvalidPublishedFileID, id, details.ConsumerAppID)
		}
		return &details, nil
	case resultFileNotFound:
		return nil, fmt.Errorf("%w: %d", ErrInvalidPublishedFileID, id)
	default:
		return nil, fmt.Errorf("%w: result %d for %d", ErrRequestFailed, details.Result, id)
	}
}

type collectionResponse struct {
	Response struct {
		Result            int `json:"result"`
		CollectionDetails []struct {
			PublishedFileID uint64 `json:"publishedfileid,string"`
			Result          int    `json:"result"`
			Children        []struct {
				PublishedFileID uint64 `json:"publishedfileid,string"`
				SortOrder       int    `json:"sortorder"`
				FileType        int    `json:"filetype"`
			} `json:"children"`
		} `json:"collectiondetails"`
	} `json:"response"`
}

// GetCollectionChildren returns the direct children of a collection.
// Children that are neither items nor collections are dropped.
func (c *Client) GetCollectionChildren(ctx context.Context, id uint64) ([]CollectionChild, error) {
	form := url.Values{}
	form.Set("collectioncount", "1")
	form.Set("publishedfileids[0]", strconv.FormatUint(id, 10))

	var resp collectionResponse
	if err := c.post(ctx, collectionPath, form, &resp); err != nil {
		return nil, err
	}

	if resp.Response.Result != resultOK || len(resp.Response.CollectionDetails) == 0 {
		return nil, fmt.Errorf("%w: collection %d not found", ErrInvalidPublishedFileID, id)
	}
	details := resp.Response.CollectionDetails[0]
	if details.Result != resultOK {
		return nil, fmt.Errorf("%w: collection %d not found", ErrInvalidPublishedFileID, id)
	}

	children := make([]CollectionChild, 0, len(details.Children))
	for _, child := range details.Children {
		if child.FileType != fileTypeItem && child.FileType != fileTypeCollection {
			continue
		}
		children = append(children, CollectionChild{
			PublishedFileID: child.PublishedFileID,
			IsCollection:    child.FileType == fileTypeCollection,
		})
	}
	return children, nil
}

// GetCollectionContent lists the items of a collection. With includeLinked
// the linked collections are expanded breadth-first; each collection is
// visited once.
func (c *Client) GetCollectionContent(ctx context.Context, id uint64, includeLinked bool) ([]uint64, error) {
	var items []uint64
	seen := map[uint64]bool{id: true}
	queue := []uint64{id}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		children, err := c.GetCollectionChildren(ctx, next)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if !child.IsCollection {
				items = append(items, child.PublishedFileID)
				continue
			}
			if includeLinked && !seen[child.PublishedFileID] {
				seen[child.PublishedFileID] = true
				queue = append(queue, child.PublishedFileID)
			}
		}
	}

	c.log.Debug("Resolved workshop collection", "id", id, "items", len(items), "linked", includeLinked)
	return items, nil
}

// Fetch downloads a small resource such as a preview image into memory
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s", ErrRequestFailed, resp.StatusCode, rawURL)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", ErrRequestFailed, err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// ParsePublishedFileID accepts a bare id or a Steam Community item URL
// (https://steamcommunity.com/sharedfiles/filedetails/?id=123).
func ParsePublishedFileID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.ParseUint(s, 10, 64); err == nil {
		return id, nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPublishedFileID, s)
	}
	id, err := strconv.ParseUint(u.Query().Get("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPublishedFileID, s)
	}
	return id, nil
}
