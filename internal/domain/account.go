package domain

import "time"

// Subject type constants used in tokens and cache keys.
const (
	SubjectUser    = "user"
	SubjectCompany = "company"
)

// IsValidSubjectType checks whether the given string is a known subject type.
func IsValidSubjectType(t string) bool {
	return t == SubjectUser || t == SubjectCompany
}

// Company is a business account that owns promos.
type Company struct {
	ID           string    `json:"company_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// User is an end user who browses and activates promos.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Age          int       `json:"age"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"created_at"`
}
