// Package github implements the hosting.Host interface against the
// GitHub REST API v3 with a personal access token.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/docsync/internal/hosting"
)

const defaultBaseURL = "https://api.github.com"

type GitHubHost struct {
	PAT     string
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a GitHub host client. An empty baseURL targets github.com.
func New(pat, baseURL string) *GitHubHost {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &GitHubHost{
		PAT:     pat,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(1*time.Second), 5), // 5 requests per second
	}
}

func (h *GitHubHost) Name() string {
	return "github"
}

// splitPRID parses "owner/repo/number".
func splitPRID(prID string) (owner, repo, number string, err error) {
	parts := strings.Split(prID, "/")
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("invalid GitHub PR ID format: expected 'owner/repo/number', got '%s'", prID)
	}
	return parts[0], parts[1], parts[2], nil
}

func (h *GitHubHost) do(ctx context.Context, method, path string, payload interface{}, accept string) (*http.Response, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "token "+h.PAT)
	if accept == "" {
		accept = "application/vnd.github.v3+json"
	}
	req.Header.Set("Accept", accept)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

func (h *GitHubHost) GetPullRequestInfo(ctx context.Context, prID string) (*hosting.PullRequestInfo, error) {
	owner, repo, number, err := splitPRID(prID)
	if err != nil {
		return nil, err
	}

	resp, err := h.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/pulls/%s", owner, repo, number), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub PR details failed: %s", resp.Status)
	}

	var pr struct {
		Title  string `json:"title"`
		State  string `json:"state"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode PR response: %w", err)
	}

	info := &hosting.PullRequestInfo{
		ID:           prID,
		Title:        pr.Title,
		State:        pr.State,
		SourceBranch: pr.Head.Ref,
		TargetBranch: pr.Base.Ref,
		WebURL:       pr.HTMLURL,
	}
	for _, l := range pr.Labels {
		info.Labels = append(info.Labels, l.Name)
	}
	return info, nil
}

func (h *GitHubHost) GetPullRequestDiff(ctx context.Context, prID string) (string, error) {
	owner, repo, number, err := splitPRID(prID)
	if err != nil {
		return "", err
	}

	resp, err := h.do(ctx, "GET", fmt.Sprintf("/repos/%s/%s/pulls/%s", owner, repo, number), nil, "application/vnd.github.v3.diff")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub PR diff failed: %s", resp.Status)
	}

	diff, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff body: %w", err)
	}
	return string(diff), nil
}

func (h *GitHubHost) GetFileContent(ctx context.Context, prID, path, ref string) (string, error) {
	owner, repo, _, err := splitPRID(prID)
	if err != nil {
		return "", err
	}

	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, url.PathEscape(path))
	if ref != "" {
		apiPath += "?ref=" + url.QueryEscape(ref)
	}
	resp, err := h.do(ctx, "GET", apiPath, nil, "application/vnd.github.v3.raw")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub file content failed for %s: %s", path, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read file body: %w", err)
	}
	return string(content), nil
}

// fileSHA returns the blob SHA of an existing file, or "" when the file
// does not exist on the branch. The contents API requires the SHA for
// updates but not for creates.
func (h *GitHubHost) fileSHA(ctx context.Context, owner, repo, path, branch string) (string, error) {
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s?ref=%s", owner, repo, url.PathEscape(path), url.QueryEscape(branch))
	resp, err := h.do(ctx, "GET", apiPath, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub file lookup failed for %s: %s", path, resp.Status)
	}

	var meta struct {
		SHA string `json:"sha"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return "", fmt.Errorf("failed to decode file metadata: %w", err)
	}
	return meta.SHA, nil
}

func (h *GitHubHost) CommitFile(ctx context.Context, prID, path, content, branch, message string) (hosting.CommitRef, error) {
	owner, repo, _, err := splitPRID(prID)
	if err != nil {
		return hosting.CommitRef{}, err
	}

	sha, err := h.fileSHA(ctx, owner, repo, path, branch)
	if err != nil {
		return hosting.CommitRef{}, err
	}

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	resp, err := h.do(ctx, "PUT", fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, url.PathEscape(path)), payload, "")
	if err != nil {
		return hosting.CommitRef{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return hosting.CommitRef{}, fmt.Errorf("GitHub commit failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result struct {
		Commit struct {
			SHA     string `json:"sha"`
			HTMLURL string `json:"html_url"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return hosting.CommitRef{}, fmt.Errorf("failed to decode commit response: %w", err)
	}
	return hosting.CommitRef{SHA: result.Commit.SHA, WebURL: result.Commit.HTMLURL}, nil
}

func (h *GitHubHost) PostComment(ctx context.Context, prID, text string) error {
	owner, repo, number, err := splitPRID(prID)
	if err != nil {
		return err
	}

	payload := map[string]string{"body": text}
	resp, err := h.do(ctx, "POST", fmt.Sprintf("/repos/%s/%s/issues/%s/comments", owner, repo, number), payload, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("GitHub comment failed: %s", resp.Status)
	}
	return nil
}

// CreateBranch creates refs/heads/<name> at the SHA of fromRef.
// repo uses the "owner/repo" form.
func (h *GitHubHost) CreateBranch(ctx context.Context, repo, name, fromRef string) error {
	resp, err := h.do(ctx, "GET", fmt.Sprintf("/repos/%s/git/ref/heads/%s", repo, url.PathEscape(fromRef)), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GitHub ref lookup failed for %s: %s", fromRef, resp.Status)
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return fmt.Errorf("failed to decode ref response: %w", err)
	}

	payload := map[string]string{
		"ref": "refs/heads/" + name,
		"sha": ref.Object.SHA,
	}
	createResp, err := h.do(ctx, "POST", fmt.Sprintf("/repos/%s/git/refs", repo), payload, "")
	if err != nil {
		return err
	}
	defer createResp.Body.Close()
	if createResp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(createResp.Body)
		return fmt.Errorf("GitHub branch create failed (status %d): %s", createResp.StatusCode, string(body))
	}
	return nil
}

func (h *GitHubHost) CreatePullRequest(ctx context.Context, repo string, pr hosting.NewPullRequest) (*hosting.PullRequestRef, error) {
	payload := map[string]string{
		"title": pr.Title,
		"body":  pr.Body,
		"head":  pr.HeadBranch,
		"base":  pr.BaseBranch,
	}
	resp, err := h.do(ctx, "POST", fmt.Sprintf("/repos/%s/pulls", repo), payload, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub PR create failed (status %d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode PR create response: %w", err)
	}

	if len(pr.Labels) > 0 {
		labelResp, err := h.do(ctx, "POST", fmt.Sprintf("/repos/%s/issues/%d/labels", repo, created.Number),
			map[string][]string{"labels": pr.Labels}, "")
		if err != nil {
			log.Warn().Err(err).Str("repo", repo).Int("pr", created.Number).Msg("failed to add labels to new PR")
		} else {
			labelResp.Body.Close()
		}
	}

	return &hosting.PullRequestRef{
		ID:     fmt.Sprintf("%s/%d", repo, created.Number),
		Number: created.Number,
		WebURL: created.HTMLURL,
	}, nil
}
