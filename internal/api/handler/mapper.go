package handler

import (
	"github.com/backendauth/identity-service/internal/core/domain"
	"github.com/backendauth/identity-service/internal/core/ports"
	"github.com/backendauth/identity-service/internal/pkg/token"
)

// --- Service output → Response ---

func toUserResponse(u *ports.UserDetail) userResponse {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Roles:     roles,
	}
}

func toUserListResponse(users []*ports.UserDetail) userListResponse {
	data := make([]userResponse, 0, len(users))
	for _, u := range users {
		data = append(data, toUserResponse(u))
	}
	return userListResponse{Data: data, Count: len(data)}
}

func toRoleResponses(roles []domain.Role) []roleResponse {
	out := make([]roleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, roleResponse{ID: int64(r.ID), Name: r.Name, Description: r.Description})
	}
	return out
}

func toIdentityResponse(ident token.Identity) identityResponse {
	roles := ident.Roles
	if roles == nil {
		roles = []string{}
	}
	return identityResponse{
		ID:        ident.UserID,
		Username:  ident.Username,
		Email:     ident.Email,
		Roles:     roles,
		ExpiresAt: ident.ExpiresAt,
	}
}

// --- Request → Service input ---

func toCreateUserInput(req createUserRequest) ports.CreateUserInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return ports.CreateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  active,
		Roles:     domain.NewRoleInput(toRoleIDs(req.RoleIDs), req.Roles),
	}
}

func toUpdateUserInput(req updateUserRequest) ports.UpdateUserInput {
	in := ports.UpdateUserInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		IsActive:  req.IsActive,
	}
	if req.RoleIDs != nil {
		ids := toRoleIDs(*req.RoleIDs)
		in.RoleIDs = &ids
	}
	return in
}

func toRoleIDs(ids []int64) []domain.RoleID {
	out := make([]domain.RoleID, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RoleID(id))
	}
	return out
}

// blankToNil treats an empty string as an absent field.
func blankToNil(s *string) *string {
	if s != nil && *s == "" {
		return nil
	}
	return s
}
