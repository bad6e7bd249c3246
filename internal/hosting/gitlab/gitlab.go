// Package gitlab implements the hosting.Host interface against the
// GitLab REST API v4. We use direct HTTP requests with a PRIVATE-TOKEN
// header; the project path segment of the MR identifier is URL-encoded
// the way the projects endpoint expects.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docsync/internal/hosting"
)

type GitLabHost struct {
	Token   string
	BaseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a GitLab host client for an instance base URL such as
// "https://gitlab.example.com".
func New(token, baseURL string) *GitLabHost {
	if baseURL == "" {
		baseURL = "https://gitlab.com"
	}
	return &GitLabHost{
		Token:   token,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(1*time.Second), 5),
	}
}

func (h *GitLabHost) Name() string {
	return "gitlab"
}

// splitMRID parses "group/project/iid" (the group part may itself
// contain slashes, so the IID is the final segment).
func splitMRID(mrID string) (project, iid string, err error) {
	idx := strings.LastIndex(mrID, "/")
	if idx <= 0 || idx == len(mrID)-1 {
		return "", "", fmt.Errorf("invalid GitLab MR ID format: expected 'group/project/iid', got '%s'", mrID)
	}
	return mrID[:idx], mrID[idx+1:], nil
}

func (h *GitLabHost) do(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
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

	req, err := http.NewRequestWithContext(ctx, method, h.BaseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", h.Token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return resp, nil
}

func (h *GitLabHost) GetPullRequestInfo(ctx context.Context, prID string) (*hosting.PullRequestInfo, error) {
	project, iid, err := splitMRID(prID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%s", url.QueryEscape(project), iid)
	resp, err := h.do(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitLab MR details failed: %s", resp.Status)
	}

	var mr struct {
		Title        string   `json:"title"`
		State        string   `json:"state"`
		Labels       []string `json:"labels"`
		SourceBranch string   `json:"source_branch"`
		TargetBranch string   `json:"target_branch"`
		WebURL       string   `json:"web_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("failed to decode MR response: %w", err)
	}

	return &hosting.PullRequestInfo{
		ID:           prID,
		Title:        mr.Title,
		State:        mr.State,
		Labels:       mr.Labels,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		WebURL:       mr.WebURL,
	}, nil
}

func (h *GitLabHost) GetPullRequestDiff(ctx context.Context, prID string) (string, error) {
	project, iid, err := splitMRID(prID)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%s/changes", url.QueryEscape(project), iid)
	resp, err := h.do(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitLab MR changes failed: %s", resp.Status)
	}

	var changes struct {
		Changes []struct {
			OldPath string `json:"old_path"`
			NewPath string `json:"new_path"`
			Diff    string `json:"diff"`
		} `json:"changes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return "", fmt.Errorf("failed to decode changes response: %w", err)
	}

	var sb strings.Builder
	for _, c := range changes.Changes {
		sb.WriteString(fmt.Sprintf("--- a/%s\n+++ b/%s\n", c.OldPath, c.NewPath))
		sb.WriteString(c.Diff)
		if !strings.HasSuffix(c.Diff, "\n") {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

func (h *GitLabHost) GetFileContent(ctx context.Context, prID, path, ref string) (string, error) {
	project, _, err := splitMRID(prID)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/files/%s/raw?ref=%s",
		url.QueryEscape(project), url.PathEscape(path), url.QueryEscape(ref))
	resp, err := h.do(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitLab file content failed for %s: %s", path, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read file body: %w", err)
	}
	return string(content), nil
}

func (h *GitLabHost) CommitFile(ctx context.Context, prID, path, content, branch, message string) (hosting.CommitRef, error) {
	project, _, err := splitMRID(prID)
	if err != nil {
		return hosting.CommitRef{}, err
	}

	commit := func(action string) (*http.Response, error) {
		payload := map[string]interface{}{
			"branch":         branch,
			"commit_message": message,
			"actions": []map[string]string{
				{"action": action, "file_path": path, "content": content},
			},
		}
		return h.do(ctx, "POST", fmt.Sprintf("/api/v4/projects/%s/repository/commits", url.QueryEscape(project)), payload)
	}

	resp, err := commit("update")
	if err != nil {
		return hosting.CommitRef{}, err
	}
	if resp.StatusCode == http.StatusBadRequest {
		// The file does not exist on the branch yet.
		resp.Body.Close()
		resp, err = commit("create")
		if err != nil {
			return hosting.CommitRef{}, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return hosting.CommitRef{}, fmt.Errorf("GitLab commit failed (status %d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		ID     string `json:"id"`
		WebURL string `json:"web_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return hosting.CommitRef{}, fmt.Errorf("failed to decode commit response: %w", err)
	}
	return hosting.CommitRef{SHA: created.ID, WebURL: created.WebURL}, nil
}

func (h *GitLabHost) PostComment(ctx context.Context, prID, text string) error {
	project, iid, err := splitMRID(prID)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("/api/v4/projects/%s/merge_requests/%s/notes", url.QueryEscape(project), iid)
	resp, err := h.do(ctx, "POST", endpoint, map[string]string{"body": text})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("GitLab note failed: %s", resp.Status)
	}
	return nil
}

func (h *GitLabHost) CreateBranch(ctx context.Context, repo, name, fromRef string) error {
	endpoint := fmt.Sprintf("/api/v4/projects/%s/repository/branches?branch=%s&ref=%s",
		url.QueryEscape(repo), url.QueryEscape(name), url.QueryEscape(fromRef))
	resp, err := h.do(ctx, "POST", endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GitLab branch create failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (h *GitLabHost) CreatePullRequest(ctx context.Context, repo string, pr hosting.NewPullRequest) (*hosting.PullRequestRef, error) {
	payload := map[string]string{
		"source_branch": pr.HeadBranch,
		"target_branch": pr.BaseBranch,
		"title":         pr.Title,
		"description":   pr.Body,
		"labels":        strings.Join(pr.Labels, ","),
	}
	resp, err := h.do(ctx, "POST", fmt.Sprintf("/api/v4/projects/%s/merge_requests", url.QueryEscape(repo)), payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitLab MR create failed (status %d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		IID    int    `json:"iid"`
		WebURL string `json:"web_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("failed to decode MR create response: %w", err)
	}

	return &hosting.PullRequestRef{
		ID:     fmt.Sprintf("%s/%d", repo, created.IID),
		Number: created.IID,
		WebURL: created.WebURL,
	}, nil
}
