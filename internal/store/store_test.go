package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lawchat/internal/model"
	"lawchat/internal/observability"
)

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (brokenKV) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (brokenKV) Delete(context.Context, string) error      { return errors.New("disk on fire") }

func TestSessionStore_SurvivesReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	kv, err := NewFileKV(dir, "http://localhost:8790")
	require.NoError(t, err)
	sessions := NewSessionStore(kv, observability.Discard())
	require.Equal(t, "", sessions.Load(ctx))
	require.NoError(t, sessions.Save(ctx, "s1"))
	require.NoError(t, sessions.Save(ctx, "s2"))

	reloaded, err := NewFileKV(dir, "http://localhost:8790")
	require.NoError(t, err)
	require.Equal(t, "s2", NewSessionStore(reloaded, observability.Discard()).Load(ctx))

	require.NoError(t, sessions.Clear(ctx))
	require.Equal(t, "", NewSessionStore(reloaded, observability.Discard()).Load(ctx))
}

func TestFileKV_ScopedByOrigin(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	a, err := NewFileKV(dir, "http://localhost:8790")
	require.NoError(t, err)
	b, err := NewFileKV(dir, "https://chat.example.edu")
	require.NoError(t, err)
	require.NotEqual(t, a.Path(), b.Path())

	require.NoError(t, a.Set(ctx, "k", "a"))
	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "http_localhost_8790.json", filepath.Base(a.Path()))
}

func TestFileKV_CorruptFileIsAbsenceForSessions(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir, "http://localhost:8790")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(kv.Path(), []byte("{not json"), 0o600))

	require.Equal(t, "", NewSessionStore(kv, observability.Discard()).Load(context.Background()))
}

func TestSessionStore_BrokenBackingStore(t *testing.T) {
	sessions := NewSessionStore(brokenKV{}, observability.Discard())
	require.Equal(t, "", sessions.Load(context.Background()))
	require.Error(t, sessions.Save(context.Background(), "s1"))
}

func TestScoped(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryKV()
	a := Scoped(base, "client-a")
	b := Scoped(base, "client-b")

	require.NoError(t, a.Set(ctx, "tlc_sid", "sa"))
	_, ok, _ := b.Get(ctx, "tlc_sid")
	require.False(t, ok)
	v, ok, _ := base.Get(ctx, "client-a:tlc_sid")
	require.True(t, ok)
	require.Equal(t, "sa", v)
}

func TestSealedKV(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryKV()
	sealed, err := NewSealedKV(base, "correct horse")
	require.NoError(t, err)

	require.NoError(t, sealed.Set(ctx, "jwt_token", "secret-token"))
	raw, _, _ := base.Get(ctx, "jwt_token")
	require.True(t, strings.HasPrefix(raw, sealedPrefix))
	require.NotContains(t, raw, "secret-token")

	v, ok, err := sealed.Get(ctx, "jwt_token")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "secret-token", v)

	other, err := NewSealedKV(base, "wrong horse")
	require.NoError(t, err)
	_, _, err = other.Get(ctx, "jwt_token")
	require.ErrorIs(t, err, ErrSealBroken)

	require.NoError(t, base.Set(ctx, "plain", "not sealed"))
	_, _, err = sealed.Get(ctx, "plain")
	require.ErrorIs(t, err, ErrSealBroken)

	_, err = NewSealedKV(base, "  ")
	require.Error(t, err)
}

func TestPrefs(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	secrets, err := NewSealedKV(kv, "k")
	require.NoError(t, err)
	prefs := NewPrefs(kv, secrets)

	_, ok, err := prefs.Login(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, prefs.SaveLogin(ctx, model.Login{Token: "t", Role: "admin", Username: "dean"}))
	login, ok, err := prefs.Login(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "t", login.Token)
	require.Equal(t, "admin", login.Role)
	require.Equal(t, "dean", login.Username)

	require.NoError(t, prefs.ClearLogin(ctx))
	_, ok, err = prefs.Login(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	m, err := prefs.Model(ctx, "gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", m)
	require.NoError(t, prefs.SetModel(ctx, "gpt-4o"))
	m, err = prefs.Model(ctx, "gpt-4o-mini")
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", m)

	require.NoError(t, prefs.SetCompareModels(ctx, []string{"a", "b"}))
	models, err := prefs.CompareModels(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, models)
}
