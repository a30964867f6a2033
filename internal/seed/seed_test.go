package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDefault(t *testing.T) {
	data, err := Default()
	require.NoError(t, err)

	assert.Len(t, data.Admins, 8)
	assert.Len(t, data.Organizations, 13)
	assert.Equal(t, "evbelugina", data.Admins[0].Username)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("admins:\n  - username: root\norganizations:\n  - Org A\n  - Org B\n"), 0o600))

	data, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Org A", "Org B"}, data.Organizations)
	assert.Equal(t, "root", data.Admins[0].Username)
}

func TestParse_RejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte("organizations:\n  - Org A\n  - Org A\n"))
	assert.ErrorIs(t, err, ErrDuplicateOrg)

	_, err = Parse([]byte("admins:\n  - username: a\n  - username: a\n"))
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	_, err = Parse([]byte("admins:\n  - username: ' '\n"))
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestBuild_HashesUsernameAsPassword(t *testing.T) {
	data := Data{Admins: []Admin{{Username: "aknol", FullName: "Кноль Анна Сергеевна"}}, Organizations: []string{"Org A"}}

	bundle, err := data.Build(bcrypt.MinCost)
	require.NoError(t, err)

	require.Len(t, bundle.Users, 1)
	user := bundle.Users[0]
	assert.True(t, user.IsAdmin)
	assert.NotEqual(t, "aknol", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("aknol")))
	assert.Equal(t, "Org A", bundle.Organizations[0].Name)
}
