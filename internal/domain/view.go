package domain

import "time"

// UserFlags carries the per-user facts needed to annotate a promo view.
type UserFlags struct {
	Liked     bool
	Activated bool
}

// UserPromoView is a promo as shown to an end user.
type UserPromoView struct {
	PromoID           string  `json:"promo_id"`
	CompanyID         string  `json:"company_id"`
	CompanyName       string  `json:"company_name"`
	Description       string  `json:"description"`
	ImageURL          *string `json:"image_url,omitempty"`
	Active            bool    `json:"active"`
	IsActivatedByUser bool    `json:"is_activated_by_user"`
	LikeCount         int     `json:"like_count"`
	IsLikedByUser     bool    `json:"is_liked_by_user"`
	CommentCount      int     `json:"comment_count"`
}

// NewUserPromoView assembles the user view from an already loaded promo.
func NewUserPromoView(p *Promo, flags UserFlags, today time.Time) UserPromoView {
	return UserPromoView{
		PromoID:           p.ID,
		CompanyID:         p.CompanyID,
		CompanyName:       p.CompanyName,
		Description:       p.Description,
		ImageURL:          p.ImageURL,
		Active:            p.IsActive(today),
		IsActivatedByUser: flags.Activated,
		LikeCount:         p.LikeCount,
		IsLikedByUser:     flags.Liked,
		CommentCount:      p.CommentCount,
	}
}

// CompanyPromoView is a promo as shown to its owning company.
type CompanyPromoView struct {
	PromoID     string   `json:"promo_id"`
	CompanyID   string   `json:"company_id"`
	CompanyName string   `json:"company_name"`
	Description string   `json:"description"`
	ImageURL    *string  `json:"image_url,omitempty"`
	Target      Target   `json:"target"`
	MaxCount    int      `json:"max_count"`
	ActiveFrom  *string  `json:"active_from,omitempty"`
	ActiveUntil *string  `json:"active_until,omitempty"`
	Mode        string   `json:"mode"`
	PromoCommon *string  `json:"promo_common,omitempty"`
	PromoUnique []string `json:"promo_unique,omitempty"`
	LikeCount   int      `json:"like_count"`
	UsedCount   int      `json:"used_count"`
	UniqueUsed  *int     `json:"unique_used,omitempty"`
	Active      bool     `json:"active"`
}

// DateLayout is the wire format of active_from / active_until.
const DateLayout = "2006-01-02"

// NewCompanyPromoView assembles the owner's view of a promo.
func NewCompanyPromoView(p *Promo, today time.Time) CompanyPromoView {
	v := CompanyPromoView{
		PromoID:     p.ID,
		CompanyID:   p.CompanyID,
		CompanyName: p.CompanyName,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		MaxCount:    p.MaxCount,
		Mode:        p.Mode,
		PromoCommon: p.PromoCommon,
		PromoUnique: p.UniqueCodes(),
		LikeCount:   p.LikeCount,
		UsedCount:   p.UsedCount,
		Active:      p.IsActive(today),
	}
	if p.Mode == PromoModeUnique {
		used := p.UniqueUsed()
		v.UniqueUsed = &used
	}
	if p.Target != nil {
		v.Target = *p.Target
	}
	if p.ActiveFrom != nil {
		s := p.ActiveFrom.Format(DateLayout)
		v.ActiveFrom = &s
	}
	if p.ActiveUntil != nil {
		s := p.ActiveUntil.Format(DateLayout)
		v.ActiveUntil = &s
	}
	return v
}
