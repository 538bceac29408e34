package mail

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// DefaultDraftsEndpoint is the Gmail API endpoint creating drafts for the
// authenticated user.
const DefaultDraftsEndpoint = "https://gmail.googleapis.com/gmail/v1/users/me/drafts"

// DraftOptions configure the draft tool.
type DraftOptions struct {
	// Endpoint overrides the Gmail drafts URL. Tests point it at a local server.
	Endpoint string
	// HTTPClient performs the API request after token acquisition. Defaults
	// to a client with a 30s timeout.
	HTTPClient *http.Client
	// TokenSource overrides OAuth2 token acquisition entirely. Tests use a
	// static source; production reads credential and token files per call.
	TokenSource oauth2.TokenSource
}

// Draft is the tool result returned to the model after a successful creation.
type Draft struct {
	ID      string `json:"id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type draftArgs struct {
	To      []string `json:"to" description:"Recipient email addresses"`
	Cc      []string `json:"cc,omitempty" description:"Carbon copy addresses"`
	Bcc     []string `json:"bcc,omitempty" description:"Blind carbon copy addresses"`
	Subject string   `json:"subject" description:"Email subject line"`
	Body    string   `json:"body" description:"Plain text email body"`
}

// credentialsFile is the subset of the Google OAuth2 client file we need.
type credentialsFile struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
		TokenURI     string `json:"token_uri"`
	} `json:"installed"`
}

// NewDraftTool builds the create_email_draft tool. Credential material is
// resolved per call from the run's dependency paths, so runs with different
// accounts can share one tool instance.
func NewDraftTool(optFns ...func(o *DraftOptions)) tool.Tool {
	opts := DraftOptions{Endpoint: DefaultDraftsEndpoint}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	return tool.NewFunctionToolFromStruct(
		"create_email_draft",
		"Create a draft email in the user's mailbox. The draft is saved, not sent.",
		draftArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			to := addressList(args["to"])
			cc := addressList(args["cc"])
			bcc := addressList(args["bcc"])
			subject, _ := args["subject"].(string)
			body, _ := args["body"].(string)
			if len(to) == 0 || subject == "" {
				return nil, tool.NewToolError("create_email_draft", "at least one recipient and a subject are required", tool.CodeValidation)
			}

			token, err := resolveToken(toolCtx, opts)
			if err != nil {
				return nil, err
			}

			return createDraft(toolCtx, opts, token, message{To: to, Cc: cc, Bcc: bcc, Subject: subject, Body: body})
		},
	)
}

// resolveToken loads OAuth2 material from the run's dependency paths and
// returns a fresh access token, refreshing through the token endpoint when
// the stored one has expired.
func resolveToken(toolCtx *core.ToolContext, opts DraftOptions) (*oauth2.Token, error) {
	if opts.TokenSource != nil {
		token, err := opts.TokenSource.Token()
		if err != nil {
			return nil, tool.NewToolError("create_email_draft",
				toolCtx.Redact(fmt.Sprintf("token refresh failed: %v", err)), tool.CodeTokenRefresh)
		}
		return token, nil
	}

	credsPath := toolCtx.Dep(core.DepMailCredentialsPath)
	tokenPath := toolCtx.Dep(core.DepMailTokenPath)
	if credsPath == "" || tokenPath == "" {
		return nil, tool.NewToolError("create_email_draft", "mail credentials not configured", tool.CodeCredentialsMissing)
	}

	credsData, err := os.ReadFile(credsPath)
	if err != nil {
		return nil, tool.NewToolError("create_email_draft",
			fmt.Sprintf("reading credentials file: %v", err), tool.CodeCredentialsMissing)
	}
	var creds credentialsFile
	if err := json.Unmarshal(credsData, &creds); err != nil {
		return nil, tool.NewToolError("create_email_draft",
			fmt.Sprintf("parsing credentials file: %v", err), tool.CodeCredentialsMissing)
	}

	tokenData, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, tool.NewToolError("create_email_draft",
			fmt.Sprintf("reading token file: %v", err), tool.CodeCredentialsMissing)
	}
	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, tool.NewToolError("create_email_draft",
			fmt.Sprintf("parsing token file: %v", err), tool.CodeCredentialsMissing)
	}

	conf := &oauth2.Config{
		ClientID:     creds.Installed.ClientID,
		ClientSecret: creds.Installed.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: creds.Installed.TokenURI},
	}

	fresh, err := conf.TokenSource(toolCtx.Context(), &token).Token()
	if err != nil {
		return nil, tool.NewToolError("create_email_draft",
			toolCtx.Redact(fmt.Sprintf("token refresh failed: %v", err)), tool.CodeTokenRefresh)
	}
	return fresh, nil
}

// message holds the fields of a draft before RFC 2822 assembly.
type message struct {
	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
}

// addressList converts a decoded JSON array into addresses, dropping
// non-string and empty entries.
func addressList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// createDraft assembles the RFC 2822 message and posts it to the drafts
// endpoint as a base64url raw payload.
func createDraft(toolCtx *core.ToolContext, opts DraftOptions, token *oauth2.Token, msg message) (*Draft, error) {
	raw := encodeMessage(msg)

	payload, err := json.Marshal(map[string]any{
		"message": map[string]string{"raw": raw},
	})
	if err != nil {
		return nil, tool.NewToolError("create_email_draft", fmt.Sprintf("encoding draft: %v", err), tool.CodeExecution)
	}

	req, err := http.NewRequestWithContext(toolCtx.Context(), http.MethodPost, opts.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, tool.NewToolError("create_email_draft", fmt.Sprintf("building request: %v", err), tool.CodeExecution)
	}
	req.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(req)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, tool.NewToolError("create_email_draft",
			toolCtx.Redact(fmt.Sprintf("draft request failed: %v", err)), tool.CodeExecution)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, tool.NewToolError("create_email_draft", "mail provider rate limit exceeded", tool.CodeRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, tool.NewToolError("create_email_draft", "mail provider rejected the access token", tool.CodeAuthFailed)
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tool.NewToolError("create_email_draft",
			toolCtx.Redact(fmt.Sprintf("mail provider returned status %d: %s", resp.StatusCode, respBody)),
			tool.CodeExecution)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, tool.NewToolError("create_email_draft", fmt.Sprintf("decoding draft response: %v", err), tool.CodeExecution)
	}

	to := strings.Join(msg.To, ", ")
	toolCtx.Logger().Info("draft.created", "draft_id", created.ID, "to", to)
	return &Draft{ID: created.ID, To: to, Subject: msg.Subject}, nil
}

// encodeMessage builds the RFC 2822 message and returns its base64url raw form.
func encodeMessage(msg message) string {
	var b strings.Builder
	b.WriteString("To: " + strings.Join(msg.To, ", ") + "\r\n")
	if len(msg.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(msg.Cc, ", ") + "\r\n")
	}
	if len(msg.Bcc) > 0 {
		b.WriteString("Bcc: " + strings.Join(msg.Bcc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}
