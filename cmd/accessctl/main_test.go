package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_LoginWhoamiLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/login":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accessToken":  "a1",
				"refreshToken": "r1",
				"user":         map[string]string{"id": "u1", "username": "ana", "role": "standard"},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
		}
	}))
	t.Cleanup(srv.Close)

	t.Setenv("ACCESSCTL_PASSWORD", "secret-pass")
	session := filepath.Join(t.TempDir(), "session.yaml")
	base := []string{"-server", srv.URL, "-session", session}

	var out, errOut bytes.Buffer
	require.Equal(t, 0, run(append(base, "login", "ana"), &out, &errOut), errOut.String())
	assert.Contains(t, out.String(), "logged in as ana")

	out.Reset()
	require.Equal(t, 0, run(append(base, "whoami"), &out, &errOut))
	assert.Equal(t, "ana (standard)\n", out.String())

	out.Reset()
	require.Equal(t, 0, run(append(base, "logout"), &out, &errOut))

	errOut.Reset()
	assert.Equal(t, 1, run(append(base, "whoami"), &out, &errOut))
	assert.Contains(t, errOut.String(), "not logged in")
}

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, run(nil, &out, &errOut))
	assert.Equal(t, 2, run([]string{"-session", filepath.Join(t.TempDir(), "s.yaml"), "bogus"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage: accessctl")
}
