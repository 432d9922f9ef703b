package workshop

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(t *testing.T, fn roundTripFunc) *Client {
	t.Helper()
	return NewClient(Options{
		HTTPClient: &http.Client{Transport: fn},
		UserAgent:  "vpkctl-test",
	})
}

func TestGetPublishedFileDetails(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", req.Method)
		}
		if !strings.HasSuffix(req.URL.Path, detailsPath) {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		if req.Header.Get("User-Agent") != "vpkctl-test" {
			t.Fatal("expected User-Agent header")
		}
		if err := req.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if req.PostForm.Get("itemcount") != "1" || req.PostForm.Get("publishedfileids[0]") != "123" {
			t.Fatalf("unexpected form %v", req.PostForm)
		}
		return jsonResponse(`{"response":{"result":1,"resultcount":1,"publishedfiledetails":[{
			"publishedfileid":"123","result":1,"consumer_app_id":550,
			"file_url":"https://cdn.example/file.vpk","preview_url":"https://cdn.example/p.jpg",
			"title":"Better Rifles","time_updated":1700000000,"views":42,
			"tags":[{"tag":"Weapons"}]}]}}`), nil
	})

	details, err := c.GetPublishedFileDetails(context.Background(), 123)
	require.NoError(t, err)

	assert.Equal(t, uint64(123), details.PublishedFileID)
	assert.Equal(t, "Better Rifles", details.Title)
	assert.Equal(t, int64(1700000000), details.TimeUpdated)
	assert.Equal(t, "https://cdn.example/file.vpk", details.FileURL)
	assert.Equal(t, int64(42), details.Views)
	assert.Equal(t, []Tag{{Tag: "Weapons"}}, details.Tags)
}

func TestGetPublishedFileDetailsClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
		want error
	}{
		{
			name: "not found",
			body: `{"response":{"result":1,"publishedfiledetails":[{"publishedfileid":"5","result":9}]}}`,
			want: ErrInvalidPublishedFileID,
		},
		{
			name: "other game",
			body: `{"response":{"result":1,"publishedfiledetails":[{"publishedfileid":"5","result":1,"consumer_app_id":440}]}}`,
			want: ErrInvalidPublishedFileID,
		},
		{
			name: "server busy",
			body: `{"response":{"result":1,"publishedfiledetails":[{"publishedfileid":"5","result":2}]}}`,
			want: ErrRequestFailed,
		},
		{
			name: "garbage",
			body: `<html>`,
			want: ErrRequestFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
				return jsonResponse(tc.body), nil
			})
			_, err := c.GetPublishedFileDetails(context.Background(), 5)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestGetCollectionContent(t *testing.T) {
	responses := map[string]string{
		"1": `{"response":{"result":1,"collectiondetails":[{"publishedfileid":"1","result":1,"children":[
			{"publishedfileid":"10","filetype":0},
			{"publishedfileid":"2","filetype":2},
			{"publishedfileid":"99","filetype":5}]}]}}`,
		"2": `{"response":{"result":1,"collectiondetails":[{"publishedfileid":"2","result":1,"children":[
			{"publishedfileid":"20","filetype":0},
			{"publishedfileid":"1","filetype":2}]}]}}`,
	}
	var calls int
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		calls++
		if err := req.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		body, ok := responses[req.PostForm.Get("publishedfileids[0]")]
		if !ok {
			t.Fatalf("unexpected collection %s", req.PostForm.Get("publishedfileids[0]"))
		}
		return jsonResponse(body), nil
	})

	items, err := c.GetCollectionContent(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10}, items)
	assert.Equal(t, 1, calls)

	calls = 0
	items, err = c.GetCollectionContent(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Equal(t, []uint64{10, 20}, items)
	assert.Equal(t, 2, calls, "each collection is fetched once even when linked in a cycle")
}

func TestParsePublishedFileID(t *testing.T) {
	id, err := ParsePublishedFileID(" 123456 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(123456), id)

	id, err = ParsePublishedFileID("https://steamcommunity.com/sharedfiles/filedetails/?id=987&searchtext=")
	require.NoError(t, err)
	assert.Equal(t, uint64(987), id)

	_, err = ParsePublishedFileID("not an id")
	assert.ErrorIs(t, err, ErrInvalidPublishedFileID)

	_, err = ParsePublishedFileID("https://steamcommunity.com/sharedfiles/filedetails/")
	assert.ErrorIs(t, err, ErrInvalidPublishedFileID)
}

func TestFetch(t *testing.T) {
	c := newTestClient(t, func(req *http.Request) (*http.Response, error) {
		if req.URL.String() == "https://cdn.example/missing.jpg" {
			return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(""))}, nil
		}
		return jsonResponse("imagebytes"), nil
	})

	data, err := c.Fetch(context.Background(), "https://cdn.example/p.jpg")
	require.NoError(t, err)
	assert.Equal(t, "imagebytes", string(data))

	_, err = c.Fetch(context.Background(), "https://cdn.example/missing.jpg")
	assert.ErrorIs(t, err, ErrRequestFailed)
}
