package cli

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandKnowsItsSubcommands(t *testing.T) {
	root := NewRootCommand()
	for _, name := range []string{"check", "claims", "invalidate", "roles", "assign", "revoke"} {
		assert.Contains(t, root.Subcommands, name)
	}
}

func TestCheckCommand(t *testing.T) {
	var gotPath, gotActor string
	var gotBody map[string]interface{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotActor = r.Header.Get("X-Actor-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]bool{"granted": true})
	}))
	defer ts.Close()

	err := runCheck([]string{
		"--user", "42",
		"--permission", "projects:read",
		"--org-type", "company",
		"--org-id", "7",
		"--server", ts.URL,
		"--actor", "100",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/check", gotPath)
	assert.Equal(t, "100", gotActor)
	assert.Equal(t, float64(42), gotBody["user_id"])
	assert.Equal(t, "projects:read", gotBody["permission"])
	assert.Equal(t, "company", gotBody["org_type"])
}

func TestCheckCommandValidation(t *testing.T) {
	err := runCheck([]string{"--permission", "projects:read"})
	assert.Error(t, err, "user is required")

	err = runCheck([]string{"--user", "1", "--permission", "projects:read", "--org-type", "company"})
	assert.Error(t, err, "org-type without org-id")
}

func TestClaimsCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/users/42/claims", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"user_id": 42})
	}))
	defer ts.Close()

	err := runClaims([]string{"--user", "42", "--server", ts.URL, "--actor", "100"})
	require.NoError(t, err)
}

func TestInvalidateCommand(t *testing.T) {
	var gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	err := runInvalidate([]string{"--user", "42", "--server", ts.URL, "--actor", "100"})
	require.NoError(t, err)
	assert.Equal(t, "DELETE", gotMethod)
}

func TestRolesCommand(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "company", r.URL.Query().Get("org_type"))
		assert.Equal(t, "7", r.URL.Query().Get("org_id"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"uuid": "abc", "name": "ADMIN", "type": "admin", "order": 100, "grants": []string{"*"}},
		})
	}))
	defer ts.Close()

	err := runRoles([]string{"--org-type", "company", "--org-id", "7", "--server", ts.URL, "--actor", "100"})
	require.NoError(t, err)
}

func TestAssignAndRevokeCommands(t *testing.T) {
	var paths []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		if r.Method == "POST" {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"id": 1})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	require.NoError(t, runAssign([]string{"--role", "abc", "--user", "42", "--server", ts.URL, "--actor", "100"}))
	require.NoError(t, runRevoke([]string{"--role", "abc", "--user", "42", "--server", ts.URL, "--actor", "100"}))

	assert.Equal(t, []string{
		"POST /v1/roles/abc/assignments",
		"DELETE /v1/roles/abc/assignments/42",
	}, paths)
}

func TestClientSurfacesServerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "actor role order too low", "code": "forbidden"})
	}))
	defer ts.Close()

	err := runAssign([]string{"--role", "abc", "--user", "42", "--server", ts.URL, "--actor", "100"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "actor role order too low")
}
