// Package backend talks to the question-answering service over HTTP.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"lawchat/internal/model"
)

type Options struct {
	BaseURL     string
	Timeout     time.Duration
	AdminHeader string
	UserAgent   string
}

type Client struct {
	http        *resty.Client
	stream      *resty.Client
	adminHeader string
}

type AskRequest struct {
	Q     string `json:"q"`
	SID   string `json:"sid"`
	Model string `json:"model,omitempty"`
}

type AskResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
	SID     string   `json:"sid"`
	MID     string   `json:"mid"`
	Error   string   `json:"error"`
}

type FeedbackRequest struct {
	SID     string `json:"sid"`
	MID     string `json:"mid"`
	Correct *bool  `json:"correct"`
	Comment string `json:"comment"`
}

func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "lawchat/1.0"
	}
	if opts.AdminHeader == "" {
		opts.AdminHeader = "x-admin-token"
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept", "application/json")

	// Streams (NDJSON export) are bounded by the caller's context only.
	stream := resty.New()
	stream.SetBaseURL(opts.BaseURL)
	stream.SetHeader("User-Agent", opts.UserAgent)

	return &Client{
		http:        client,
		stream:      stream,
		adminHeader: opts.AdminHeader,
	}
}

// Ask posts a question. Any JSON body is returned as-is, including bodies
// carrying an "error" field; only transport and decode failures are errors.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/ask")
	if err != nil {
		return nil, fmt.Errorf("ask request failed: %w", err)
	}

	var out AskResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("decode ask response failed (status %d): %w", resp.StatusCode(), err)
	}
	if resp.IsError() && out.Error == "" && out.Answer == "" {
		out.Error = fmt.Sprintf("backend returned %d %s", resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}
	return &out, nil
}

func (c *Client) Reset(ctx context.Context, sid string) error {
	return c.send(ctx, call{
		method: http.MethodPost,
		path:   "/reset",
		body:   map[string]string{"sid": sid},
	}, nil)
}

func (c *Client) History(ctx context.Context, sid string) ([]model.Message, error) {
	var out struct {
		History []model.Message `json:"history"`
	}
	if err := c.send(ctx, call{
		method: http.MethodGet,
		path:   "/history",
		query:  map[string]string{"sid": sid},
	}, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		out.History = []model.Message{}
	}
	return out.History, nil
}

func (c *Client) Feedback(ctx context.Context, req FeedbackRequest) error {
	return c.send(ctx, call{
		method: http.MethodPost,
		path:   "/feedback",
		body:   req,
	}, nil)
}

func (c *Client) Login(ctx context.Context, username, password string) (*model.Login, error) {
	var out model.Login
	if err := c.send(ctx, call{
		method: http.MethodPost,
		path:   "/login",
		body:   map[string]string{"username": username, "password": password},
	}, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &APIError{Status: http.StatusUnauthorized, Message: "login returned no token"}
	}
	if out.Username == "" {
		out.Username = username
	}
	return &out, nil
}

// Ping checks that the backend answers HTTP at all.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/")
	if err != nil {
		return fmt.Errorf("ping backend failed: %w", err)
	}
	if resp.StatusCode() >= http.StatusInternalServerError {
		return &APIError{Status: resp.StatusCode()}
	}
	return nil
}

type call struct {
	method     string
	path       string
	pathParams map[string]string
	query      map[string]string
	body       any
	token      string
}

func (c *Client) send(ctx context.Context, cl call, out any) error {
	r := c.http.R().SetContext(ctx)
	if cl.body != nil {
		r.SetBody(cl.body)
	}
	if len(cl.pathParams) > 0 {
		r.SetPathParams(cl.pathParams)
	}
	if len(cl.query) > 0 {
		r.SetQueryParams(cl.query)
	}
	if cl.token != "" {
		r.SetAuthToken(cl.token)
		r.SetHeader(c.adminHeader, cl.token)
	}

	resp, err := r.Execute(cl.method, cl.path)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", cl.method, cl.path, err)
	}
	body := resp.Body()
	if resp.IsError() {
		return apiErrorFrom(resp.StatusCode(), body)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Error != "" {
			return &APIError{Status: resp.StatusCode(), Message: env.Error}
		}
		if env.OK != nil && !*env.OK {
			return &APIError{Status: resp.StatusCode(), Message: "backend reported ok=false"}
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response failed: %w", cl.path, err)
	}
	return nil
}
