package domain

import "time"

// Activation records one successful redemption of a promo by a user.
// A user may hold several activations of the same promo.
type Activation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	PromoID     string    `json:"promo_id"`
	Code        string    `json:"-"`
	ActivatedAt time.Time `json:"activated_at"`
}

// Comment is a user comment on a promo. Only its author may edit or delete it.
type Comment struct {
	ID        string        `json:"id"`
	PromoID   string        `json:"-"`
	AuthorID  string        `json:"-"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"date"`
	Author    CommentAuthor `json:"author"`
}

// CommentAuthor is the public part of the commenting user.
type CommentAuthor struct {
	Name      string  `json:"name"`
	Surname   string  `json:"surname"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

// Comment text bounds.
const (
	MinCommentLength = 10
	MaxCommentLength = 1000
)
