package research

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/tool"
)

// DefaultSearchEndpoint is the Brave web search API endpoint.
const DefaultSearchEndpoint = "https://api.search.brave.com/res/v1/web/search"

// SearchOptions configure the web search tool.
type SearchOptions struct {
	// Endpoint overrides the search API URL. Tests point it at a local server.
	Endpoint string
	// HTTPClient performs the requests. Defaults to a client with a 15s timeout.
	HTTPClient *http.Client
	// MaxResults caps the number of results returned per query.
	MaxResults int
}

// SearchResult is one web search hit as returned to the model.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

type searchArgs struct {
	Query string `json:"query" description:"The web search query"`
	Count *int   `json:"count,omitempty" description:"Maximum number of results to return"`
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// NewSearchTool builds the search_web tool backed by the Brave search API.
// The API key is read per call from the run's dependencies, so one tool
// instance serves runs with different credentials.
func NewSearchTool(optFns ...func(o *SearchOptions)) tool.Tool {
	opts := SearchOptions{
		Endpoint:   DefaultSearchEndpoint,
		MaxResults: 5,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	return tool.NewFunctionToolFromStruct(
		"search_web",
		"Search the web for current information. Returns a list of results with title, URL and description.",
		searchArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return nil, tool.NewToolError("search_web", "query must not be empty", tool.CodeValidation)
			}

			count := opts.MaxResults
			if c, ok := args["count"].(float64); ok && int(c) > 0 && int(c) < count {
				count = int(c)
			}

			apiKey := toolCtx.Dep(core.DepSearchAPIKey)
			if apiKey == "" {
				return nil, tool.NewToolError("search_web", "search API key not configured", tool.CodeCredentialsMissing)
			}

			return search(toolCtx, opts, query, count, apiKey)
		},
	)
}

func search(toolCtx *core.ToolContext, opts SearchOptions, query string, count int, apiKey string) ([]SearchResult, error) {
	u, err := url.Parse(opts.Endpoint)
	if err != nil {
		return nil, tool.NewToolError("search_web", fmt.Sprintf("invalid endpoint: %v", err), tool.CodeExecution)
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(count))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(toolCtx.Context(), http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, tool.NewToolError("search_web", fmt.Sprintf("building request: %v", err), tool.CodeExecution)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", apiKey)

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return nil, tool.NewToolError("search_web", toolCtx.Redact(fmt.Sprintf("search request failed: %v", err)), tool.CodeExecution)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, tool.NewToolError("search_web", "search provider rate limit exceeded", tool.CodeRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, tool.NewToolError("search_web", "search provider rejected the API key", tool.CodeAuthFailed)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, tool.NewToolError("search_web",
			toolCtx.Redact(fmt.Sprintf("search provider returned status %d: %s", resp.StatusCode, body)),
			tool.CodeExecution)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, tool.NewToolError("search_web", fmt.Sprintf("decoding search response: %v", err), tool.CodeExecution)
	}

	// No hits is a valid outcome, not an error.
	results := make([]SearchResult, 0, len(parsed.Web.Results))
	for i, r := range parsed.Web.Results {
		if i >= count {
			break
		}
		results = append(results, SearchResult{Title: r.Title, URL: r.URL, Description: r.Description})
	}

	toolCtx.Logger().Debug("search.complete", "query", query, "results", len(results))
	return results, nil
}
