package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// GitHubWebhookPayload covers the fields docsync reads from GitHub's
// issue_comment and pull_request events.
type GitHubWebhookPayload struct {
	Action     string `json:"action"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Issue struct {
		Number      int              `json:"number"`
		PullRequest *json.RawMessage `json:"pull_request"` // present only on PR comments
	} `json:"issue"`
	Comment struct {
		Body string `json:"body"`
		User struct {
			Login string `json:"login"`
		} `json:"user"`
	} `json:"comment"`
	PullRequest struct {
		Number int  `json:"number"`
		Merged bool `json:"merged"`
	} `json:"pull_request"`
}

// GitHubWebhookHandler handles incoming GitHub webhook events.
func (s *Server) GitHubWebhookHandler(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	if s.secret != "" {
		if !verifyGitHubSignature(s.secret, body, c.Request().Header.Get("X-Hub-Signature-256")) {
			log.Warn().Msg("github webhook signature mismatch")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		}
	}

	var payload GitHubWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error().Err(err).Msg("failed to parse GitHub webhook payload")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
	}

	eventKind := c.Request().Header.Get("X-GitHub-Event")
	log.Info().Str("event", eventKind).Str("action", payload.Action).Msg("received GitHub webhook")

	switch eventKind {
	case "issue_comment":
		// Only comments on pull requests, only newly created ones.
		if payload.Action == "created" && payload.Issue.PullRequest != nil {
			prID := fmt.Sprintf("%s/%d", payload.Repository.FullName, payload.Issue.Number)
			s.processComment(prID, payload.Comment.Body, payload.Comment.User.Login)
		}
	case "pull_request":
		if payload.Action == "closed" && payload.PullRequest.Merged {
			prID := fmt.Sprintf("%s/%d", payload.Repository.FullName, payload.PullRequest.Number)
			s.processMerge(prID)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

// verifyGitHubSignature checks the X-Hub-Signature-256 HMAC.
func verifyGitHubSignature(secret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
