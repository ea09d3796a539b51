package cloudflare

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/demosjarco/cloudflare-dns-updater/internal/config"
)

const (
	defaultBaseURL = "https://api.cloudflare.com/client/v4"
	userAgent      = "cloudflare-dns-updater"
)

// ErrNotFound marks responses with HTTP status 404.
var ErrNotFound = errors.New("cloudflare resource not found")

// Client implements the Cloudflare REST API for DNS records, gateway locations and Spectrum apps.
type Client struct {
	baseURL    *url.URL
	accountID  string
	token      string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a Cloudflare API client.
func NewClient(cfg config.CloudflareConfig) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid Cloudflare base URL: %w", err)
	}

	return &Client{
		baseURL:   parsed,
		accountID: cfg.AccountID,
		token:     cfg.APIToken,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// send encodes payload (when non-nil) as the JSON body and decodes the envelope into response.
func (client *Client) send(ctx context.Context, method string, endpoint *url.URL, payload any, response any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return err
	}
	client.addHeaders(request)
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	if err := client.do(request, response); err != nil {
		return err
	}
	if envelope, ok := response.(interface{ Err() error }); ok {
		return envelope.Err()
	}
	return nil
}

func (client *Client) do(request *http.Request, response any) error {
	resp, err := client.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		summary := ""
		if len(body) > 0 && json.Unmarshal(body, response) == nil {
			if payload, ok := response.(interface{ ErrorSummary() string }); ok {
				summary = strings.TrimSpace(payload.ErrorSummary())
			}
		}
		if summary == "" || summary == "unknown error" {
			summary = strings.TrimSpace(string(body))
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: status %s: %s", ErrNotFound, resp.Status, summary)
		}
		return fmt.Errorf("cloudflare API request failed with status %s: %s", resp.Status, summary)
	}

	if len(body) == 0 {
		return fmt.Errorf("cloudflare API returned empty response with status %s", resp.Status)
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("cloudflare API returned non-JSON response with status %s: %w", resp.Status, err)
	}
	return nil
}

func (client *Client) addHeaders(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+client.token)
	request.Header.Set("User-Agent", client.userAgent)
}

func (client *Client) zoneBase(zoneID string, elems ...string) *url.URL {
	base := *client.baseURL
	base.Path = path.Join(append([]string{base.Path, "zones", zoneID}, elems...)...)
	return &base
}

func (client *Client) accountBase(elems ...string) *url.URL {
	base := *client.baseURL
	base.Path = path.Join(append([]string{base.Path, "accounts", client.accountID}, elems...)...)
	return &base
}

type apiResponse[T any] struct {
	Success    bool        `json:"success"`
	Errors     []apiError  `json:"errors"`
	Result     T           `json:"result"`
	ResultInfo *resultInfo `json:"result_info,omitempty"`
}

func (response apiResponse[T]) Err() error {
	if response.Success {
		return nil
	}
	return fmt.Errorf("cloudflare API error: %s", joinErrors(response.Errors))
}

func (response apiResponse[T]) ErrorSummary() string {
	return joinErrors(response.Errors)
}

// lastPage reports whether no further page follows the current one.
func (response apiResponse[T]) lastPage(page int) bool {
	if response.ResultInfo == nil || response.ResultInfo.TotalPages == 0 {
		return true
	}
	return page >= response.ResultInfo.TotalPages
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type resultInfo struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Count      int `json:"count"`
	TotalCount int `json:"total_count"`
	TotalPages int `json:"total_pages"`
}

func joinErrors(errors []apiError) string {
	if len(errors) == 0 {
		return "unknown error"
	}
	messages := make([]string, 0, len(errors))
	for _, item := range errors {
		if item.Code != 0 {
			messages = append(messages, fmt.Sprintf("%s (%d)", item.Message, item.Code))
			continue
		}
		messages = append(messages, item.Message)
	}
	return strings.Join(messages, "; ")
}
