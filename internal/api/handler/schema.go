package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	User      userResponse `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	IsValid bool `json:"isValid"`
}

type identityResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// --- Users ---

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Roles     []string  `json:"roles"`
}

type userListResponse struct {
	Data  []userResponse `json:"data"`
	Count int            `json:"count"`
}

// createUserRequest accepts roles either as ids or as names. Ids win when
// both are present; with neither the user gets the default role.
type createUserRequest struct {
	Username  string   `json:"username"  validate:"required,max=50"`
	Email     string   `json:"email"     validate:"required,email,max=100"`
	Password  string   `json:"password"  validate:"required,min=6,max=100,password"`
	FirstName string   `json:"firstName" validate:"max=100"`
	LastName  string   `json:"lastName"  validate:"max=100"`
	IsActive  *bool    `json:"isActive"`
	RoleIDs   []int64  `json:"roleIds"`
	Roles     []string `json:"roles"`
}

// updateUserRequest is a partial update. A present roleIds, even empty,
// replaces every assignment.
type updateUserRequest struct {
	Username  *string  `json:"username"  validate:"omitempty,max=50"`
	Email     *string  `json:"email"     validate:"omitempty,email,max=100"`
	FirstName *string  `json:"firstName" validate:"omitempty,max=100"`
	LastName  *string  `json:"lastName"  validate:"omitempty,max=100"`
	IsActive  *bool    `json:"isActive"`
	RoleIDs   *[]int64 `json:"roleIds"`
}

type roleResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type messageResponse struct {
	Message string `json:"message"`
}
