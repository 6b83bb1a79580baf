package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/generic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// Structs

var authTests = []struct {
	name     string
	password string
	id       int
	err      error
}{
	{"user0", "password0", 1, nil},
	{"user1", "password1", 2, nil},
	{"user2", "password2", 3, nil},
	{"user1", "password0", -1, ErrWrongPassword},
	{"user2", "wrong", -1, ErrWrongPassword},
	{"user9", "password9", -1, ErrUnknownUser},
	{"", "", -1, ErrUnknownUser},
}

// failingAuthenticator simulates an unreachable backend.
type failingAuthenticator struct{}

func (failingAuthenticator) AuthenticatePlain(username string, password string) (int, error) {
	return -1, errors.New("connection refused")
}

// Functions

// writeUsersFile places a users file with one hashed
// and two plain passwords into a temporary directory.
func writeUsersFile(t *testing.T) string {

	hash, err := HashPassword("password2", bcrypt.MinCost)
	require.NoError(t, err)

	content := "# name:password\nuser1:password1\n\nuser0:password0\nuser2:" + hash + "\n"

	file := filepath.Join(t.TempDir(), "users.txt")
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))

	return file
}

// TestFileAuthenticator executes a black-box table
// test on looking up users from a users file.
func TestFileAuthenticator(t *testing.T) {

	a, err := NewFileAuthenticator(writeUsersFile(t), ":")
	require.NoError(t, err)
	require.Len(t, a.Users, 3)

	// Lookup needs names sorted.
	assert.Equal(t, "user0", a.Users[0].Name)
	assert.Equal(t, 2, a.Users[0].ID)

	// IDs follow the order in the file.
	fileIDs := map[string]int{"user1": 1, "user0": 2, "user2": 3}

	for _, tt := range authTests {

		want := -1
		if tt.err == nil {
			want = fileIDs[tt.name]
		}

		id, err := a.AuthenticatePlain(tt.name, tt.password)
		assert.Equal(t, want, id, "user %s", tt.name)
		assert.True(t, errors.Is(err, tt.err), "user %s: %v", tt.name, err)
	}
}

// TestFileAuthenticatorErrors checks missing and malformed files.
func TestFileAuthenticatorErrors(t *testing.T) {

	_, err := NewFileAuthenticator(filepath.Join(t.TempDir(), "missing.txt"), ":")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "broken.txt")
	require.NoError(t, os.WriteFile(file, []byte("user0:password0\nuser1\n"), 0600))

	_, err = NewFileAuthenticator(file, ":")
	assert.Error(t, err)

	_, err = NewFileAuthenticator(file, "")
	assert.Error(t, err)
}

// TestSQLiteAuthenticator checks user lookups in
// an in-memory SQLite users table.
func TestSQLiteAuthenticator(t *testing.T) {

	a, err := NewSQLiteAuthenticator(":memory:")
	require.NoError(t, err)
	defer a.Close()

	for i, name := range []string{"user0", "user1", "user2"} {

		hash, err := HashPassword("password"+string(rune('0'+i)), bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, a.AddUser(i+1, name, hash))
	}

	// Names are unique.
	assert.Error(t, a.AddUser(4, "user0", "x"))

	for _, tt := range authTests {

		id, err := a.AuthenticatePlain(tt.name, tt.password)
		assert.Equal(t, tt.id, id, "user %s", tt.name)
		assert.True(t, errors.Is(err, tt.err), "user %s: %v", tt.name, err)
	}
}

// TestService checks the adapter and its decorators.
func TestService(t *testing.T) {

	a, err := NewFileAuthenticator(writeUsersFile(t), ":")
	require.NoError(t, err)

	logins := generic.NewCounter("logins")
	failed := generic.NewCounter("failed_logins")
	logouts := generic.NewCounter("logouts")

	s := NewService(a, log.NewNopLogger())
	s = NewLoggingService(s, log.NewNopLogger())
	s = NewMetricsService(s, logins, failed, logouts)

	assert.True(t, s.Authenticate("user0", "password0"))
	assert.True(t, s.Authenticate("user2", "password2"))
	assert.False(t, s.Authenticate("user0", "password1"))
	assert.False(t, s.Authenticate("nobody", "password0"))

	s.OnLogout("user0")

	assert.Equal(t, 2.0, logins.Value())
	assert.Equal(t, 2.0, failed.Value())
	assert.Equal(t, 1.0, logouts.Value())

	// Backend failures reject the login.
	assert.False(t, NewService(failingAuthenticator{}, nil).Authenticate("user0", "password0"))
}
