package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk-service/internal/api/dto"
	"github.com/deskops/helpdesk-service/internal/auth"
	"github.com/deskops/helpdesk-service/internal/service"
)

// CommentsHandler exposes the comment thread and the timeline.
type CommentsHandler struct {
	ledger *service.LedgerService
}

func NewCommentsHandler(ledger *service.LedgerService) *CommentsHandler {
	return &CommentsHandler{ledger: ledger}
}

// ListComments GET /api/tickets/:id/comments.
func (h *CommentsHandler) ListComments(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	comments, err := h.ledger.ListComments(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.CommentResponse, 0, len(comments))
	for i := range comments {
		items = append(items, commentResponse(&comments[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AddComment POST /api/tickets/:id/comments.
func (h *CommentsHandler) AddComment(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	comment, err := h.ledger.AddComment(c.UserContext(), principal, ticketID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": commentResponse(comment)})
}

// DeleteComment DELETE /api/comments/:id.
func (h *CommentsHandler) DeleteComment(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	commentID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.ledger.DeleteComment(c.UserContext(), principal, commentID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListActions GET /api/tickets/:id/actions.
func (h *CommentsHandler) ListActions(c *fiber.Ctx) error {
	principal, err := auth.MustPrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	actions, err := h.ledger.ListActions(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	items := make([]dto.ActionResponse, 0, len(actions))
	for i := range actions {
		items = append(items, actionResponse(&actions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
