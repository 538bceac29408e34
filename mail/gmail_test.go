package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

func newToolContext(t *testing.T, deps core.Deps) *core.ToolContext {
	t.Helper()
	emit := make(chan core.Event, 32)
	required := make([]core.DepKey, 0, len(deps))
	for k := range deps {
		required = append(required, k)
	}
	rc, err := core.NewRunContext(context.Background(), core.NewID(), core.AgentInfo{Name: "email_agent"}, deps, required, core.NewUsageTracker(), 0, emit, nil)
	require.NoError(t, err)
	return core.NewToolContext(rc, "call-1")
}

func writeCredentialFiles(t *testing.T, tokenURL string) (string, string) {
	t.Helper()
	dir := t.TempDir()

	creds := map[string]any{"installed": map[string]string{
		"client_id":     "client-123",
		"client_secret": "secret-456",
		"token_uri":     tokenURL,
	}}
	credsPath := filepath.Join(dir, "credentials.json")
	data, err := json.Marshal(creds)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(credsPath, data, 0o600))

	token := oauth2.Token{
		AccessToken:  "access-789",
		RefreshToken: "refresh-000",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour), // still valid, no refresh needed
	}
	tokenPath := filepath.Join(dir, "token.json")
	data, err = json.Marshal(token)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(tokenPath, data, 0o600))

	return credsPath, tokenPath
}

func TestDraftTool(t *testing.T) {
	t.Run("creates a draft", func(t *testing.T) {
		var gotRaw string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer access-789", r.Header.Get("Authorization"))

			var payload struct {
				Message struct {
					Raw string `json:"raw"`
				} `json:"message"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			gotRaw = payload.Message.Raw

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-42"})
		}))
		defer srv.Close()

		credsPath, tokenPath := writeCredentialFiles(t, srv.URL+"/token")
		deps := core.Deps{
			core.DepMailCredentialsPath: credsPath,
			core.DepMailTokenPath:       tokenPath,
		}

		dt := NewDraftTool(func(o *DraftOptions) { o.Endpoint = srv.URL })

		result, err := dt.Call(newToolContext(t, deps), map[string]any{
			"to":      []any{"gopher@example.com"},
			"subject": "Research findings",
			"body":    "Here is what I found.",
		})
		require.NoError(t, err)

		draft, ok := result.(*Draft)
		require.True(t, ok)
		assert.Equal(t, "draft-42", draft.ID)
		assert.Equal(t, "gopher@example.com", draft.To)

		decoded, err := base64.URLEncoding.DecodeString(gotRaw)
		require.NoError(t, err)
		msg := string(decoded)
		assert.Contains(t, msg, "To: gopher@example.com\r\n")
		assert.Contains(t, msg, "Subject: Research findings\r\n")
		assert.NotContains(t, msg, "Cc:")
		assert.True(t, strings.HasSuffix(msg, "Here is what I found."))
	})

	t.Run("multiple recipients with cc and bcc", func(t *testing.T) {
		var gotRaw string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				Message struct {
					Raw string `json:"raw"`
				} `json:"message"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			gotRaw = payload.Message.Raw

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "draft-43"})
		}))
		defer srv.Close()

		dt := NewDraftTool(func(o *DraftOptions) {
			o.Endpoint = srv.URL
			o.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-789", TokenType: "Bearer"})
		})

		result, err := dt.Call(newToolContext(t, core.Deps{}), map[string]any{
			"to":      []any{"a@example.com", "b@example.com"},
			"cc":      []any{"c@example.com"},
			"bcc":     []any{"d@example.com"},
			"subject": "Team update",
			"body":    "Status below.",
		})
		require.NoError(t, err)

		draft, ok := result.(*Draft)
		require.True(t, ok)
		assert.Equal(t, "a@example.com, b@example.com", draft.To)

		decoded, err := base64.URLEncoding.DecodeString(gotRaw)
		require.NoError(t, err)
		msg := string(decoded)
		assert.Contains(t, msg, "To: a@example.com, b@example.com\r\n")
		assert.Contains(t, msg, "Cc: c@example.com\r\n")
		assert.Contains(t, msg, "Bcc: d@example.com\r\n")
	})

	t.Run("missing credential paths", func(t *testing.T) {
		dt := NewDraftTool()

		_, err := dt.Call(newToolContext(t, core.Deps{}), map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b",
		})

		var te *tool.ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tool.CodeCredentialsMissing, te.Code)
	})

	t.Run("unreadable token file", func(t *testing.T) {
		credsPath, _ := writeCredentialFiles(t, "http://unused/token")
		deps := core.Deps{
			core.DepMailCredentialsPath: credsPath,
			core.DepMailTokenPath:       filepath.Join(t.TempDir(), "missing.json"),
		}

		dt := NewDraftTool()

		_, err := dt.Call(newToolContext(t, deps), map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b",
		})

		var te *tool.ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tool.CodeCredentialsMissing, te.Code)
	})

	t.Run("token refresh failure", func(t *testing.T) {
		dt := NewDraftTool(func(o *DraftOptions) {
			o.TokenSource = failingTokenSource{}
		})

		_, err := dt.Call(newToolContext(t, core.Deps{}), map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b",
		})

		var te *tool.ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tool.CodeTokenRefresh, te.Code)
	})

	t.Run("provider rejects the token", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))
		defer srv.Close()

		dt := NewDraftTool(func(o *DraftOptions) {
			o.Endpoint = srv.URL
			o.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "stale", TokenType: "Bearer"})
		})

		_, err := dt.Call(newToolContext(t, core.Deps{}), map[string]any{
			"to": []any{"a@example.com"}, "subject": "s", "body": "b",
		})

		var te *tool.ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tool.CodeAuthFailed, te.Code)
	})

	t.Run("missing recipient rejected", func(t *testing.T) {
		dt := NewDraftTool()

		_, err := dt.Call(newToolContext(t, core.Deps{}), map[string]any{"subject": "s", "body": "b"})

		var te *tool.ToolError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, tool.CodeValidation, te.Code)
	})
}

type failingTokenSource struct{}

func (failingTokenSource) Token() (*oauth2.Token, error) {
	return nil, assert.AnError
}

func TestEncodeMessage(t *testing.T) {
	raw := encodeMessage(message{To: []string{"a@example.com"}, Subject: "Hi", Body: "line one\nline two"})

	decoded, err := base64.URLEncoding.DecodeString(raw)
	require.NoError(t, err)

	msg := string(decoded)
	header, body, found := strings.Cut(msg, "\r\n\r\n")
	require.True(t, found, "blank line separates headers from body")
	assert.Contains(t, header, "MIME-Version: 1.0")
	assert.Equal(t, "line one\nline two", body)
}

func TestNewAgent(t *testing.T) {
	a, err := NewAgent(nil)
	require.NoError(t, err)

	assert.Equal(t, "email_agent", a.Name())
	assert.Equal(t, []string{"create_email_draft"}, a.Tools().Names())
	assert.ElementsMatch(t, []core.DepKey{core.DepMailCredentialsPath, core.DepMailTokenPath}, a.Requires())
}
