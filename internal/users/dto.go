package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/adityamehra/shopkart-backend/pkg/db/models"
	"github.com/adityamehra/shopkart-backend/pkg/enums"
	"github.com/adityamehra/shopkart-backend/pkg/types"
)

// Profile is the public view of a user account.
type Profile struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	Phone     string         `json:"phone"`
	Role      enums.UserRole `json:"role"`
	Address   *types.Address `json:"address,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// FromModel maps a user row to its public profile.
func FromModel(user *models.User) *Profile {
	if user == nil {
		return nil
	}
	return &Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		Address:   user.Address,
		CreatedAt: user.CreatedAt,
	}
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         *Profile `json:"user"`
}
