package app

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lawchat/internal/backend"
	"lawchat/internal/model"
)

type fakeAdmin struct {
	mu        sync.Mutex
	queries   []backend.SessionQuery
	page      *backend.SessionPage
	deleted   []string
	deleteErr map[string]error
	created   []model.Override
	patched   map[string]model.OverridePatch
	compared  []backend.CompareRequest
	users     []model.UserInput
}

func (f *fakeAdmin) Sessions(_ context.Context, q backend.SessionQuery) (*backend.SessionPage, error) {
	f.queries = append(f.queries, q)
	if f.page == nil {
		return &backend.SessionPage{}, nil
	}
	return f.page, nil
}

func (f *fakeAdmin) Session(_ context.Context, sid string) (*model.SessionDetail, error) {
	return &model.SessionDetail{SID: sid}, nil
}

func (f *fakeAdmin) DeleteSession(_ context.Context, sid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, sid)
	return f.deleteErr[sid]
}

func (f *fakeAdmin) Export(_ context.Context, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, "{\"sid\":\"a\"}\n{\"sid\":\"b\"}\n")
	return int64(n), err
}

func (f *fakeAdmin) Overrides(context.Context) ([]model.Override, error) {
	return []model.Override{{ID: "o1"}}, nil
}

func (f *fakeAdmin) CreateOverride(_ context.Context, o model.Override) ([]model.Override, error) {
	f.created = append(f.created, o)
	return []model.Override{o}, nil
}

func (f *fakeAdmin) UpdateOverride(_ context.Context, id string, patch model.OverridePatch) ([]model.Override, error) {
	if f.patched == nil {
		f.patched = map[string]model.OverridePatch{}
	}
	f.patched[id] = patch
	return nil, nil
}

func (f *fakeAdmin) DeleteOverride(context.Context, string) ([]model.Override, error) {
	return nil, nil
}

func (f *fakeAdmin) CompareModels(_ context.Context, req backend.CompareRequest) ([]model.ModelResult, error) {
	f.compared = append(f.compared, req)
	out := make([]model.ModelResult, 0, len(req.Models))
	for _, m := range req.Models {
		out = append(out, model.ModelResult{Model: m, Answer: "x"})
	}
	return out, nil
}

func (f *fakeAdmin) Users(context.Context) ([]model.User, error) {
	return []model.User{{Username: "dean", Role: model.UserRoleAdmin}}, nil
}

func (f *fakeAdmin) CreateUser(_ context.Context, in model.UserInput) error {
	f.users = append(f.users, in)
	return nil
}

func (f *fakeAdmin) UpdateUser(_ context.Context, _ string, in model.UserInput) error {
	f.users = append(f.users, in)
	return nil
}

func (f *fakeAdmin) DeleteUser(context.Context, string) error {
	return nil
}

func TestPager(t *testing.T) {
	tests := []struct {
		name    string
		pager   Pager
		label   string
		hasPrev bool
		hasNext bool
	}{
		{name: "first page", pager: Pager{Limit: 25, Skip: 0, Total: 60}, label: "1–25 of 60", hasNext: true},
		{name: "middle", pager: Pager{Limit: 25, Skip: 25, Total: 60}, label: "26–50 of 60", hasPrev: true, hasNext: true},
		{name: "last partial", pager: Pager{Limit: 25, Skip: 50, Total: 60}, label: "51–60 of 60", hasPrev: true},
		{name: "exact end", pager: Pager{Limit: 25, Skip: 25, Total: 50}, label: "26–50 of 50", hasPrev: true},
		{name: "empty", pager: Pager{Limit: 25, Skip: 0, Total: 0}, label: "1–0 of 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.label, tt.pager.Label())
			require.Equal(t, tt.hasPrev, tt.pager.HasPrev())
			require.Equal(t, tt.hasNext, tt.pager.HasNext())
		})
	}

	p := Pager{Limit: 25, Skip: 10, Total: 100}
	require.Equal(t, 0, p.Prev().Skip)
	require.Equal(t, 35, p.Next().Skip)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	api := &fakeAdmin{page: &backend.SessionPage{Rows: []model.SessionRow{{SID: "s1"}}, Total: 30}}
	svc := NewAdminService(api, 25, 2)

	list, err := svc.ListSessions(ctx, SessionFilter{Q: " tuition ", From: "2025-01-01", To: "2025-02-01"}, 25)
	require.NoError(t, err)
	require.Equal(t, Pager{Limit: 25, Skip: 25, Total: 30}, list.Pager)
	require.Equal(t, backend.SessionQuery{Limit: 25, Skip: 25, Q: "tuition", From: "2025-01-01", To: "2025-02-01"}, api.queries[0])

	_, err = svc.ListSessions(ctx, SessionFilter{}, -5)
	require.NoError(t, err)
	require.Equal(t, 0, api.queries[1].Skip)
}

func TestListSessions_BadDates(t *testing.T) {
	svc := NewAdminService(&fakeAdmin{}, 25, 2)
	for _, f := range []SessionFilter{
		{From: "01/02/2025"},
		{To: "2025-13-01"},
		{From: "2025-03-01", To: "2025-02-01"},
	} {
		_, err := svc.ListSessions(context.Background(), f, 0)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestDeleteSessions(t *testing.T) {
	api := &fakeAdmin{deleteErr: map[string]error{"s2": errors.New("not found")}}
	svc := NewAdminService(api, 25, 2)

	results, err := svc.DeleteSessions(context.Background(), []string{"s1", " s2", "s1", "", "s3"})
	require.NoError(t, err)
	require.Equal(t, []DeleteResult{
		{SID: "s1"},
		{SID: "s2", Error: "not found"},
		{SID: "s3"},
	}, results)
	require.ElementsMatch(t, []string{"s1", "s2", "s3"}, api.deleted)

	_, err = svc.DeleteSessions(context.Background(), []string{" "})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestExportPassesThrough(t *testing.T) {
	svc := NewAdminService(&fakeAdmin{}, 25, 2)
	var sb strings.Builder
	n, err := svc.Export(context.Background(), &sb)
	require.NoError(t, err)
	require.Equal(t, int64(sb.Len()), n)
	require.Equal(t, "{\"sid\":\"a\"}\n{\"sid\":\"b\"}\n", sb.String())
}

func TestOverrideValidation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAdmin{}
	svc := NewAdminService(api, 25, 2)

	_, err := svc.CreateOverride(ctx, model.Override{Question: "  ", Answer: "a"})
	require.ErrorIs(t, err, ErrInvalidInput)
	require.Empty(t, api.created)

	_, err = svc.CreateOverride(ctx, model.Override{
		Question: " When is orientation? ",
		Answer:   "August.",
		Sources:  []string{" https://law.temple.edu/orientation ", "", "https://law.temple.edu/orientation"},
		Enabled:  true,
	})
	require.NoError(t, err)
	require.Equal(t, "When is orientation?", api.created[0].Question)
	require.Equal(t, []string{"https://law.temple.edu/orientation"}, api.created[0].Sources)

	blank := " "
	_, err = svc.UpdateOverride(ctx, "o1", model.OverridePatch{Answer: &blank})
	require.ErrorIs(t, err, ErrInvalidInput)

	on := false
	_, err = svc.UpdateOverride(ctx, "o1", model.OverridePatch{Enabled: &on})
	require.NoError(t, err)
	require.False(t, *api.patched["o1"].Enabled)
}

func TestCompareModelsValidation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAdmin{}
	svc := NewAdminService(api, 25, 2)

	_, err := svc.CompareModels(ctx, "q", nil)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.CompareModels(ctx, " ", []string{"gpt-4o"})
	require.ErrorIs(t, err, ErrInvalidInput)

	results, err := svc.CompareModels(ctx, "q", []string{"gpt-4o", "gpt-4o", "gpt-4o-mini"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, []string{"gpt-4o", "gpt-4o-mini"}, api.compared[0].Models)
}

func TestUserValidation(t *testing.T) {
	ctx := context.Background()
	api := &fakeAdmin{}
	svc := NewAdminService(api, 25, 2)

	require.ErrorIs(t, svc.CreateUser(ctx, model.UserInput{Username: "x"}), ErrInvalidInput)
	require.ErrorIs(t, svc.CreateUser(ctx, model.UserInput{Username: "x", Password: "p", Role: "root"}), ErrInvalidInput)
	require.NoError(t, svc.CreateUser(ctx, model.UserInput{Username: " clerk ", Password: "p"}))
	require.Equal(t, model.UserInput{Username: "clerk", Password: "p", Role: model.UserRoleViewer}, api.users[0])

	require.ErrorIs(t, svc.UpdateUser(ctx, "clerk", model.UserInput{}), ErrInvalidInput)
	require.NoError(t, svc.UpdateUser(ctx, "clerk", model.UserInput{Role: model.UserRoleAdmin}))
	require.ErrorIs(t, svc.DeleteUser(ctx, ""), ErrInvalidInput)
}
