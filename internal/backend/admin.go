package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"lawchat/internal/model"
)

// Admin issues authenticated console calls with one token.
type Admin struct {
	c     *Client
	token string
}

func (c *Client) Admin(token string) *Admin {
	return &Admin{c: c, token: token}
}

type SessionQuery struct {
	Limit int
	Skip  int
	Q     string
	From  string
	To    string
}

type SessionPage struct {
	Rows  []model.SessionRow `json:"rows"`
	Total int                `json:"total"`
}

type CompareRequest struct {
	Q      string   `json:"q"`
	Models []string `json:"models"`
}

func (a *Admin) Sessions(ctx context.Context, q SessionQuery) (*SessionPage, error) {
	query := map[string]string{
		"limit": strconv.Itoa(q.Limit),
		"skip":  strconv.Itoa(q.Skip),
	}
	if q.Q != "" {
		query["q"] = q.Q
	}
	if q.From != "" {
		query["from"] = q.From
	}
	if q.To != "" {
		query["to"] = q.To
	}

	var out SessionPage
	if err := a.c.send(ctx, call{
		method: http.MethodGet,
		path:   "/admin/sessions",
		query:  query,
		token:  a.token,
	}, &out); err != nil {
		return nil, err
	}
	if out.Rows == nil {
		out.Rows = []model.SessionRow{}
	}
	return &out, nil
}

func (a *Admin) Session(ctx context.Context, sid string) (*model.SessionDetail, error) {
	var out model.SessionDetail
	if err := a.c.send(ctx, call{
		method:     http.MethodGet,
		path:       "/admin/session/{sid}",
		pathParams: map[string]string{"sid": sid},
		token:      a.token,
	}, &out); err != nil {
		return nil, err
	}
	if out.SID == "" {
		out.SID = sid
	}
	return &out, nil
}

func (a *Admin) DeleteSession(ctx context.Context, sid string) error {
	return a.c.send(ctx, call{
		method:     http.MethodDelete,
		path:       "/admin/session/{sid}",
		pathParams: map[string]string{"sid": sid},
		token:      a.token,
	}, nil)
}

// Export streams the NDJSON dump of every session into w.
func (a *Admin) Export(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := a.c.stream.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetQueryParam("token", a.token).
		Get("/admin/export.ndjson")
	if err != nil {
		return 0, fmt.Errorf("export request failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(body, 4096))
		return 0, apiErrorFrom(resp.StatusCode(), raw)
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("copy export stream failed: %w", err)
	}
	return n, nil
}

type overrideRows struct {
	Rows []model.Override `json:"rows"`
}

func (a *Admin) Overrides(ctx context.Context) ([]model.Override, error) {
	var out overrideRows
	if err := a.c.send(ctx, call{
		method: http.MethodGet,
		path:   "/admin/overrides",
		token:  a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (a *Admin) CreateOverride(ctx context.Context, o model.Override) ([]model.Override, error) {
	var out overrideRows
	if err := a.c.send(ctx, call{
		method: http.MethodPost,
		path:   "/admin/override",
		body:   o,
		token:  a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (a *Admin) UpdateOverride(ctx context.Context, id string, patch model.OverridePatch) ([]model.Override, error) {
	var out overrideRows
	if err := a.c.send(ctx, call{
		method:     http.MethodPatch,
		path:       "/admin/override/{id}",
		pathParams: map[string]string{"id": id},
		body:       patch,
		token:      a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (a *Admin) DeleteOverride(ctx context.Context, id string) ([]model.Override, error) {
	var out overrideRows
	if err := a.c.send(ctx, call{
		method:     http.MethodDelete,
		path:       "/admin/override/{id}",
		pathParams: map[string]string{"id": id},
		token:      a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

func (a *Admin) CompareModels(ctx context.Context, req CompareRequest) ([]model.ModelResult, error) {
	var out struct {
		Results []model.ModelResult `json:"results"`
	}
	if err := a.c.send(ctx, call{
		method: http.MethodPost,
		path:   "/admin/compare-models",
		body:   req,
		token:  a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (a *Admin) Users(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := a.c.send(ctx, call{
		method: http.MethodGet,
		path:   "/admin/users",
		token:  a.token,
	}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *Admin) CreateUser(ctx context.Context, in model.UserInput) error {
	return a.c.send(ctx, call{
		method: http.MethodPost,
		path:   "/admin/users",
		body:   in,
		token:  a.token,
	}, nil)
}

func (a *Admin) UpdateUser(ctx context.Context, username string, in model.UserInput) error {
	return a.c.send(ctx, call{
		method:     http.MethodPatch,
		path:       "/admin/users/{username}",
		pathParams: map[string]string{"username": username},
		body:       in,
		token:      a.token,
	}, nil)
}

func (a *Admin) DeleteUser(ctx context.Context, username string) error {
	return a.c.send(ctx, call{
		method:     http.MethodDelete,
		path:       "/admin/users/{username}",
		pathParams: map[string]string{"username": username},
		token:      a.token,
	}, nil)
}
