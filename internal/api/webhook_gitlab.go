package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// GitLabWebhookPayload covers the fields docsync reads from GitLab's
// Note Hook and Merge Request Hook events.
type GitLabWebhookPayload struct {
	ObjectKind string `json:"object_kind"`
	User       struct {
		Username string `json:"username"`
	} `json:"user"`
	Project struct {
		PathWithNamespace string `json:"path_with_namespace"`
	} `json:"project"`
	ObjectAttributes struct {
		IID          int    `json:"iid"`
		Note         string `json:"note"`
		NoteableType string `json:"noteable_type"`
		Action       string `json:"action"`
		State        string `json:"state"`
	} `json:"object_attributes"`
	MergeRequest struct {
		IID int `json:"iid"`
	} `json:"merge_request"`
}

// GitLabWebhookHandler handles incoming GitLab webhook events.
func (s *Server) GitLabWebhookHandler(c echo.Context) error {
	if s.secret != "" && c.Request().Header.Get("X-Gitlab-Token") != s.secret {
		log.Warn().Msg("gitlab webhook token mismatch")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
	}

	var payload GitLabWebhookPayload
	if err := c.Bind(&payload); err != nil {
		log.Error().Err(err).Msg("failed to parse GitLab webhook payload")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
	}

	eventKind := c.Request().Header.Get("X-Gitlab-Event")
	log.Info().Str("event", eventKind).Str("kind", payload.ObjectKind).Msg("received GitLab webhook")

	switch payload.ObjectKind {
	case "note":
		if payload.ObjectAttributes.NoteableType == "MergeRequest" {
			prID := fmt.Sprintf("%s/%d", payload.Project.PathWithNamespace, payload.MergeRequest.IID)
			s.processComment(prID, payload.ObjectAttributes.Note, payload.User.Username)
		}
	case "merge_request":
		if payload.ObjectAttributes.Action == "merge" || payload.ObjectAttributes.State == "merged" {
			prID := fmt.Sprintf("%s/%d", payload.Project.PathWithNamespace, payload.ObjectAttributes.IID)
			s.processMerge(prID)
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}
