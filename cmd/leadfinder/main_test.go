package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func fakeReddit(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/r/forhire/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"kind":"Listing","data":{"children":[
			{"kind":"t3","data":{"id":"a","title":"Wonderful project, great client","selftext":"Happy to pay well",
			 "score":2,"num_comments":1,"author":"carol","url":"https://x/9","subreddit":"forhire"}}]}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestScanCommandPrintsResult(t *testing.T) {
	srv := fakeReddit(t)
	t.Setenv("LEADFINDER_REDDIT_CLIENT_ID", "id")
	t.Setenv("LEADFINDER_REDDIT_CLIENT_SECRET", "secret")
	t.Setenv("LEADFINDER_REDDIT_USER_AGENT", "lead-finder-test/0.1")
	t.Setenv("LEADFINDER_REDDIT_BASE_URL", srv.URL)
	t.Setenv("LEADFINDER_REDDIT_TOKEN_URL", srv.URL+"/api/v1/access_token")
	t.Setenv("LEADFINDER_DB_DRIVER", "sqlite")
	t.Setenv("LEADFINDER_DB_DSN", filepath.Join(t.TempDir(), "leads.db"))
	t.Setenv("LEADFINDER_SCAN_CHANNELS", "forhire")
	t.Setenv("LEADFINDER_SCAN_KEYWORDS", "need a website built")
	t.Chdir(t.TempDir())

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"scan"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var res struct {
		NewLeads int `json:"new_leads"`
		Leads    []struct {
			Score int    `json:"score"`
			URL   string `json:"url"`
		} `json:"leads"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Equal(t, 1, res.NewLeads)
	require.Equal(t, 4, res.Leads[0].Score)
	require.Equal(t, "https://x/9", res.Leads[0].URL)
}

func TestRootCommandRequiresCredentials(t *testing.T) {
	t.Setenv("LEADFINDER_REDDIT_CLIENT_ID", "")
	t.Setenv("REDDIT_CLIENT_ID", "")
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	cmd.SetArgs([]string{"scan"})
	cmd.SetOut(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	require.ErrorContains(t, err, "load config")
}

func TestHelpDoesNotBuildApp(t *testing.T) {
	t.Setenv("LEADFINDER_REDDIT_CLIENT_ID", "")
	t.Setenv("REDDIT_CLIENT_ID", "")
	t.Chdir(t.TempDir())

	tests := map[string][]string{
		"help":            {"help"},
		"help subcommand": {"help", "scan"},
		"help flag":       {"serve", "--help"},
		"completion":      {"completion", "bash"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newRootCmd()
			cmd.SetOut(&out)
			cmd.SetArgs(args)
			require.NoError(t, cmd.ExecuteContext(context.Background()))
			require.NotEmpty(t, out.String())
		})
	}
}
