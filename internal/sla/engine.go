// Package sla derives resolution deadlines and their classification from
// ticket priority. Nothing here is persisted except the due time itself.
package sla

import (
	"errors"
	"fmt"
	"time"

	"github.com/deskops/helpdesk-service/internal/domain"
)

// Policy is the fixed three-tier window table plus the due-soon threshold.
type Policy struct {
	High    time.Duration
	Medium  time.Duration
	Low     time.Duration
	DueSoon time.Duration
}

// DefaultPolicy returns the stock windows: high 4h, medium 24h, low 72h.
func DefaultPolicy() Policy {
	return Policy{
		High:    4 * time.Hour,
		Medium:  24 * time.Hour,
		Low:     72 * time.Hour,
		DueSoon: time.Hour,
	}
}

// Validate rejects non-positive windows and a negative threshold.
func (p Policy) Validate() error {
	for name, window := range map[string]time.Duration{"high": p.High, "medium": p.Medium, "low": p.Low} {
		if window <= 0 {
			return fmt.Errorf("sla window for %s priority must be positive, got %s", name, window)
		}
	}
	if p.DueSoon < 0 {
		return errors.New("sla due-soon threshold must not be negative")
	}
	return nil
}

// Engine computes deadlines. It is safe for concurrent use.
type Engine struct {
	policy Policy
}

// NewEngine builds an engine after validating the policy.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Engine{policy: policy}, nil
}

// Policy returns the configured windows.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Window returns the resolution window for a priority. Unknown priorities
// fall back to the medium window.
func (e *Engine) Window(priority domain.TicketPriority) time.Duration {
	switch priority {
	case domain.TicketPriorityHigh:
		return e.policy.High
	case domain.TicketPriorityLow:
		return e.policy.Low
	default:
		return e.policy.Medium
	}
}

// DueAt is createdAt plus the priority window.
func (e *Engine) DueAt(priority domain.TicketPriority, createdAt time.Time) time.Time {
	return createdAt.Add(e.Window(priority))
}

// Classify maps a deadline to its status at now. A ticket exactly at its
// deadline is due soon, not breached.
func (e *Engine) Classify(status domain.TicketStatus, dueAt, now time.Time) domain.SLAStatus {
	if status == domain.TicketStatusClosed {
		return domain.SLAClosed
	}
	if now.After(dueAt) {
		return domain.SLABreached
	}
	if dueAt.Sub(now) < e.policy.DueSoon {
		return domain.SLADueSoon
	}
	return domain.SLAOnTrack
}

// StatusOf classifies a stored ticket.
func (e *Engine) StatusOf(t *domain.Ticket, now time.Time) domain.SLAStatus {
	return e.Classify(t.Status, t.DueAt, now)
}
