package static_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/gatehouse/internal/auth/directory"
	"github.com/aussiebroadwan/gatehouse/internal/auth/directory/static"
	"github.com/aussiebroadwan/gatehouse/pkg/slogx"
)

const usersJSON = `{"users":[
	{"id":1,"username":"emilys","passwordHash":"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA","firstName":"Emily","lastName":"Johnson"},
	{"id":2,"username":"michaelw","passwordHash":"$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA","firstName":"Michael","lastName":"Williams"}
]}`

func writeUsers(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestFile_Lookup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	writeUsers(t, path, usersJSON)

	f, err := static.Load(path)
	require.NoError(t, err)

	res, err := f.FetchUser(t.Context(), "EMILY")
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	require.Equal(t, "emilys", res.Users[0].Username)

	res, err = f.FetchUser(t.Context(), "nobody")
	require.NoError(t, err)
	require.Empty(t, res.Users)

	u, err := f.GetUser(t.Context(), 2)
	require.NoError(t, err)
	require.Equal(t, "michaelw", u.Username)

	_, err = f.GetUser(t.Context(), 99)
	require.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"users":`},
		{"plaintext password", `{"users":[{"id":1,"username":"a","password":"secret"}]}`},
		{"missing username", `{"users":[{"id":1}]}`},
		{"duplicate id", `{"users":[{"id":1,"username":"a"},{"id":1,"username":"b"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "users.json")
			writeUsers(t, path, tt.body)
			_, err := static.Load(path)
			require.Error(t, err)
		})
	}

	_, err := static.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestFile_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	writeUsers(t, path, `{"users":[{"id":1,"username":"emilys"}]}`)

	f, err := static.Load(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	require.NoError(t, f.Watch(ctx, slogx.Discard()))

	writeUsers(t, path, `{"users":`)
	writeUsers(t, path, usersJSON)

	require.Eventually(t, func() bool {
		_, err := f.GetUser(t.Context(), 2)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}
