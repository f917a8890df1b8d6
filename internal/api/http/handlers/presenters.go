package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/deskops/helpdesk-service/internal/api/dto"
	"github.com/deskops/helpdesk-service/internal/domain"
	"github.com/deskops/helpdesk-service/internal/service"
	apperrors "github.com/deskops/helpdesk-service/pkg/util/errorutil"
)

func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewFieldValidationError(name, name+" must be a positive integer")
	}
	return id, nil
}

func ticketResponse(view *service.TicketView) dto.TicketResponse {
	t := view.Ticket
	return dto.TicketResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		Priority:     t.Priority,
		CreatorID:    t.CreatedBy,
		CreatorName:  t.CreatorName,
		AssigneeID:   t.AssignedTo,
		AssigneeName: t.AssigneeName,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
		DueAt:        t.DueAt,
		SLAStatus:    view.SLAStatus,
		Version:      t.Version,
	}
}

func ticketListResponse(page *service.TicketPage) dto.TicketListResponse {
	items := make([]dto.TicketResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, ticketResponse(&page.Items[i]))
	}
	return dto.TicketListResponse{
		Items: items,
		Total: page.Total,
		Filter: dto.TicketFilterResponse{
			Role:     page.Role,
			Status:   page.Filter.Status,
			Priority: page.Filter.Priority,
			Breached: page.Filter.BreachedOnly,
			Search:   page.Filter.Search,
			Limit:    page.Filter.Limit,
			Offset:   page.Filter.Offset,
		},
	}
}

func commentResponse(comment *domain.Comment) dto.CommentResponse {
	return dto.CommentResponse{
		ID:         comment.ID,
		TicketID:   comment.TicketID,
		AuthorID:   comment.AuthorID,
		AuthorName: comment.AuthorName,
		Content:    comment.Content,
		CreatedAt:  comment.CreatedAt,
	}
}

func actionResponse(action *domain.Action) dto.ActionResponse {
	return dto.ActionResponse{
		ID:        action.ID,
		TicketID:  action.TicketID,
		ActorID:   action.ActorID,
		Actor:     action.Actor(),
		Kind:      action.Kind,
		Detail:    action.Detail,
		CreatedAt: action.CreatedAt,
	}
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
	}
}

func sessionResponse(session *service.Session) dto.SessionResponse {
	return dto.SessionResponse{
		User: userResponse(session.User),
		Auth: dto.AuthResponse{Token: session.Token, ExpiresAt: session.ExpiresAt},
	}
}
