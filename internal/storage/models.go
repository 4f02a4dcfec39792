package storage

import "time"

// AccessKey is a single-use invitation token that grants Role on redemption.
type AccessKey struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Role       string    `json:"role"`
	Used       bool      `json:"used"`
	AssignedTo *string   `json:"assignedTo"`
	Username   string    `json:"username"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AccessKeyUpdate is a partial update; nil fields are left unchanged.
type AccessKeyUpdate struct {
	Used       *bool
	AssignedTo *string
	Username   *string
}

// User is a credentialed account bound to exactly one access key. Role is a
// copy of the key's role taken when the user was created.
type User struct {
	ID           string    `json:"id"`
	KeyID        string    `json:"keyId"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PhotoSection is a gallery entry.
type PhotoSection struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Photo       string    `json:"photo"`
	Category    string    `json:"category"`
	CreatedBy   string    `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PageContent is an editable snippet of a site page, unique on (Page, Key).
type PageContent struct {
	ID        string    `json:"id"`
	Page      string    `json:"page"`
	Section   string    `json:"section"`
	Key       string    `json:"key"`
	Content   string    `json:"content"`
	UpdatedBy string    `json:"updatedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Apply returns a copy of key with the non-nil fields of u merged in.
func (u AccessKeyUpdate) Apply(key AccessKey) AccessKey {
	if u.Used != nil {
		key.Used = *u.Used
	}
	if u.AssignedTo != nil {
		assigned := *u.AssignedTo
		key.AssignedTo = &assigned
	}
	if u.Username != nil {
		key.Username = *u.Username
	}
	return key
}
