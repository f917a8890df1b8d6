package domain

import "time"

// Comment is a message in a ticket thread. Only admins may delete one.
type Comment struct {
	ID         int64
	TicketID   int64
	AuthorID   int64
	AuthorName string
	Content    string
	CreatedAt  time.Time
}
