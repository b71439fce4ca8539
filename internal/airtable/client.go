package airtable

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// DefaultBaseURL is the Airtable REST API root.
const DefaultBaseURL = "https://api.airtable.com/v0"

// ErrSourceUnavailable wraps every transport, status and decoding failure.
var ErrSourceUnavailable = errors.New("record source unavailable")

// Direction is a sort direction accepted by the list endpoint.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Sort orders a listing by one field.
type Sort struct {
	Field     string
	Direction Direction
}

// SelectOptions configures a listing.
type SelectOptions struct {
	Sort []Sort
	// MaxRecords caps the total number of rows returned; 0 means no cap.
	MaxRecords int
}

// Options configures a Client.
type Options struct {
	BaseURL  string
	BaseID   string
	APIKey   string
	Table    string
	PageSize int
	// Timeout bounds each HTTP request; 0 disables it.
	Timeout time.Duration
}

// Client is an authenticated client for one Airtable table.
type Client struct {
	httpClient *http.Client
	endpoint   string
	pageSize   int
	log        zerolog.Logger
}

// NewClient creates a client that sends the API key as a bearer token.
func NewClient(ctx context.Context, opts Options, log zerolog.Logger) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.APIKey, TokenType: "Bearer"})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = opts.Timeout

	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		httpClient: hc,
		endpoint:   strings.TrimRight(base, "/") + "/" + url.PathEscape(opts.BaseID) + "/" + url.PathEscape(opts.Table),
		pageSize:   opts.PageSize,
		log:        log.With().Str("component", "airtable").Logger(),
	}
}

// Record is a raw row as returned by the API.
type Record struct {
	ID          string    `json:"id"`
	CreatedTime time.Time `json:"createdTime"`
	Fields      Fields    `json:"fields"`
}

// listResponse is one page of the list endpoint.
type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type createRequest struct {
	Records  []createRecord `json:"records"`
	Typecast bool           `json:"typecast"`
}

type createRecord struct {
	Fields Fields `json:"fields"`
}

func (c *Client) listURL(opts SelectOptions, offset string) string {
	q := url.Values{}
	for i, s := range opts.Sort {
		q.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		q.Set(fmt.Sprintf("sort[%d][direction]", i), string(s.Direction))
	}
	if opts.MaxRecords > 0 {
		q.Set("maxRecords", strconv.Itoa(opts.MaxRecords))
	}
	if c.pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(c.pageSize))
	}
	if offset != "" {
		q.Set("offset", offset)
	}
	if len(q) == 0 {
		return c.endpoint
	}
	return c.endpoint + "?" + q.Encode()
}

// EachPage fetches rows page by page and hands every page to fn. Iteration
// stops when the table is exhausted, fn returns false, or a request fails.
func (c *Client) EachPage(ctx context.Context, opts SelectOptions, fn func(page []Record) bool) error {
	offset := ""
	for n := 1; ; n++ {
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.listURL(opts, offset), nil, &page); err != nil {
			return err
		}
		c.log.Debug().Int("page", n).Int("records", len(page.Records)).Msg("page received")

		if !fn(page.Records) || page.Offset == "" {
			return nil
		}
		offset = page.Offset
	}
}

// Create inserts one row and returns it as stored.
func (c *Client) Create(ctx context.Context, fields Fields) (Record, error) {
	body, err := json.Marshal(createRequest{Records: []createRecord{{Fields: fields}}, Typecast: true})
	if err != nil {
		return Record{}, fmt.Errorf("encoding record: %w", err)
	}
	var resp listResponse
	if err := c.do(ctx, http.MethodPost, c.endpoint, body, &resp); err != nil {
		return Record{}, err
	}
	if len(resp.Records) != 1 {
		return Record{}, fmt.Errorf("%w: create returned %d records", ErrSourceUnavailable, len(resp.Records))
	}
	return resp.Records[0], nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return fmt.Errorf("%w: reading response body: %v", ErrSourceUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: airtable error %d: %s", ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decoding airtable response: %v", ErrSourceUnavailable, err)
	}
	return nil
}
