package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"lawchat/internal/backend"
	"lawchat/internal/model"
)

// ExportFileName is where the session dump is saved.
const ExportFileName = "sessions.ndjson"

const dateLayout = "2006-01-02"

type AdminAPI interface {
	Sessions(ctx context.Context, q backend.SessionQuery) (*backend.SessionPage, error)
	Session(ctx context.Context, sid string) (*model.SessionDetail, error)
	DeleteSession(ctx context.Context, sid string) error
	Export(ctx context.Context, w io.Writer) (int64, error)
	Overrides(ctx context.Context) ([]model.Override, error)
	CreateOverride(ctx context.Context, o model.Override) ([]model.Override, error)
	UpdateOverride(ctx context.Context, id string, patch model.OverridePatch) ([]model.Override, error)
	DeleteOverride(ctx context.Context, id string) ([]model.Override, error)
	CompareModels(ctx context.Context, req backend.CompareRequest) ([]model.ModelResult, error)
	Users(ctx context.Context) ([]model.User, error)
	CreateUser(ctx context.Context, in model.UserInput) error
	UpdateUser(ctx context.Context, username string, in model.UserInput) error
	DeleteUser(ctx context.Context, username string) error
}

// Pager is the offset window of the session browser.
type Pager struct {
	Limit int `json:"limit"`
	Skip  int `json:"skip"`
	Total int `json:"total"`
}

func (p Pager) HasPrev() bool {
	return p.Skip > 0
}

func (p Pager) HasNext() bool {
	return p.Skip+p.Limit < p.Total
}

func (p Pager) Next() Pager {
	p.Skip += p.Limit
	return p
}

func (p Pager) Prev() Pager {
	p.Skip = max(0, p.Skip-p.Limit)
	return p
}

// Label renders "11–20 of 42".
func (p Pager) Label() string {
	return fmt.Sprintf("%d–%d of %d", p.Skip+1, min(p.Skip+p.Limit, p.Total), p.Total)
}

// SessionFilter narrows the session browser. Dates are YYYY-MM-DD.
type SessionFilter struct {
	Q    string `json:"q"`
	From string `json:"from"`
	To   string `json:"to"`
}

type SessionList struct {
	Rows  []model.SessionRow `json:"rows"`
	Pager Pager              `json:"pager"`
}

type DeleteResult struct {
	SID   string `json:"sid"`
	Error string `json:"error,omitempty"`
}

type AdminService struct {
	api         AdminAPI
	pageSize    int
	concurrency int
}

func NewAdminService(api AdminAPI, pageSize, concurrency int) *AdminService {
	if pageSize <= 0 {
		pageSize = 25
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &AdminService{
		api:         api,
		pageSize:    pageSize,
		concurrency: concurrency,
	}
}

func (s *AdminService) PageSize() int {
	return s.pageSize
}

func (s *AdminService) ListSessions(ctx context.Context, filter SessionFilter, skip int) (*SessionList, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		skip = 0
	}

	page, err := s.api.Sessions(ctx, backend.SessionQuery{
		Limit: s.pageSize,
		Skip:  skip,
		Q:     filter.Q,
		From:  filter.From,
		To:    filter.To,
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	rows := page.Rows
	if rows == nil {
		rows = []model.SessionRow{}
	}
	return &SessionList{
		Rows:  rows,
		Pager: Pager{Limit: s.pageSize, Skip: skip, Total: page.Total},
	}, nil
}

func normalizeFilter(f SessionFilter) (SessionFilter, error) {
	f.Q = strings.TrimSpace(f.Q)
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)

	var from, to time.Time
	var err error
	if f.From != "" {
		if from, err = time.Parse(dateLayout, f.From); err != nil {
			return f, fmt.Errorf("%w: from date %q is not YYYY-MM-DD", ErrInvalidInput, f.From)
		}
	}
	if f.To != "" {
		if to, err = time.Parse(dateLayout, f.To); err != nil {
			return f, fmt.Errorf("%w: to date %q is not YYYY-MM-DD", ErrInvalidInput, f.To)
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return f, fmt.Errorf("%w: to date is before from date", ErrInvalidInput)
	}
	return f, nil
}

func (s *AdminService) Session(ctx context.Context, sid string) (*model.SessionDetail, error) {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return nil, ErrInvalidInput
	}
	detail, err := s.api.Session(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("load session failed: %w", err)
	}
	if detail.History == nil {
		detail.History = []model.Message{}
	}
	return detail, nil
}

func (s *AdminService) DeleteSession(ctx context.Context, sid string) error {
	sid = strings.TrimSpace(sid)
	if sid == "" {
		return ErrInvalidInput
	}
	if err := s.api.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

// DeleteSessions deletes every distinct sid with bounded concurrency. One
// failure does not stop the others; results keep input order.
func (s *AdminService) DeleteSessions(ctx context.Context, sids []string) ([]DeleteResult, error) {
	seen := make(map[string]struct{}, len(sids))
	var unique []string
	for _, sid := range sids {
		sid = strings.TrimSpace(sid)
		if sid == "" {
			continue
		}
		if _, ok := seen[sid]; ok {
			continue
		}
		seen[sid] = struct{}{}
		unique = append(unique, sid)
	}
	if len(unique) == 0 {
		return nil, ErrInvalidInput
	}

	results := make([]DeleteResult, len(unique))
	p := pool.New().WithMaxGoroutines(s.concurrency).WithContext(ctx)
	for i, sid := range unique {
		p.Go(func(ctx context.Context) error {
			results[i].SID = sid
			if err := s.api.DeleteSession(ctx, sid); err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = p.Wait()
	return results, nil
}

// Export streams the backend's NDJSON dump into w unchanged.
func (s *AdminService) Export(ctx context.Context, w io.Writer) (int64, error) {
	n, err := s.api.Export(ctx, w)
	if err != nil {
		return n, fmt.Errorf("export sessions failed: %w", err)
	}
	return n, nil
}

func (s *AdminService) Overrides(ctx context.Context) ([]model.Override, error) {
	rows, err := s.api.Overrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("list overrides failed: %w", err)
	}
	return rows, nil
}

func (s *AdminService) CreateOverride(ctx context.Context, o model.Override) ([]model.Override, error) {
	o.Question = strings.TrimSpace(o.Question)
	o.Answer = strings.TrimSpace(o.Answer)
	if o.Question == "" || o.Answer == "" {
		return nil, fmt.Errorf("%w: question and answer are required", ErrInvalidInput)
	}
	o.Sources = cleanList(o.Sources)

	rows, err := s.api.CreateOverride(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("create override failed: %w", err)
	}
	return rows, nil
}

func (s *AdminService) UpdateOverride(ctx context.Context, id string, patch model.OverridePatch) ([]model.Override, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	for _, field := range []*string{patch.Question, patch.Answer} {
		if field == nil {
			continue
		}
		*field = strings.TrimSpace(*field)
		if *field == "" {
			return nil, fmt.Errorf("%w: question and answer cannot be blank", ErrInvalidInput)
		}
	}
	if patch.Sources != nil {
		patch.Sources = cleanList(patch.Sources)
	}

	rows, err := s.api.UpdateOverride(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update override failed: %w", err)
	}
	return rows, nil
}

func (s *AdminService) DeleteOverride(ctx context.Context, id string) ([]model.Override, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrInvalidInput
	}
	rows, err := s.api.DeleteOverride(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete override failed: %w", err)
	}
	return rows, nil
}

func (s *AdminService) CompareModels(ctx context.Context, q string, models []string) ([]model.ModelResult, error) {
	q = strings.TrimSpace(q)
	models = cleanList(models)
	if q == "" || len(models) == 0 {
		return nil, fmt.Errorf("%w: a question and at least one model are required", ErrInvalidInput)
	}
	results, err := s.api.CompareModels(ctx, backend.CompareRequest{Q: q, Models: models})
	if err != nil {
		return nil, fmt.Errorf("compare models failed: %w", err)
	}
	return results, nil
}

func (s *AdminService) Users(ctx context.Context) ([]model.User, error) {
	users, err := s.api.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users failed: %w", err)
	}
	return users, nil
}

func (s *AdminService) CreateUser(ctx context.Context, in model.UserInput) error {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}
	if in.Role == "" {
		in.Role = model.UserRoleViewer
	}
	if !validUserRole(in.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if err := s.api.CreateUser(ctx, in); err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

func (s *AdminService) UpdateUser(ctx context.Context, username string, in model.UserInput) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidInput
	}
	if in.Role != "" && !validUserRole(in.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, in.Role)
	}
	if in.Role == "" && in.Password == "" {
		return fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	}
	in.Username = ""
	if err := s.api.UpdateUser(ctx, username, in); err != nil {
		return fmt.Errorf("update user failed: %w", err)
	}
	return nil
}

func (s *AdminService) DeleteUser(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidInput
	}
	if err := s.api.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("delete user failed: %w", err)
	}
	return nil
}

func validUserRole(role string) bool {
	return role == model.UserRoleAdmin || role == model.UserRoleViewer
}

// cleanList trims entries and drops blanks and duplicates.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
