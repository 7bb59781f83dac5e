package authclient

import "strings"

// Account statuses as seen by the client. Agencies are pending until an
// admin approves them; travelers are always active.
const (
	StatusActive   = "active"
	StatusPending  = "pending"
	StatusApproved = "approved"
)

// Account is the uniform client-side view of a principal, whichever shape
// the server returned it in.
type Account struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	DisplayName      string `json:"displayName"`
	Status           string `json:"status"`
	ProfileCompleted bool   `json:"profileCompleted"`
}

// wireAccount is the union of the user and agency response shapes.
type wireAccount struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Role             string `json:"role"`
	ProfileCompleted bool   `json:"profileCompleted"`
	Name             string `json:"name"`
	AgencyName       string `json:"agencyName"`
	IsApproved       bool   `json:"isApproved"`
	IsVerified       bool   `json:"isVerified"`
}

// normalize collapses either server shape into an Account. The display name
// falls back from the explicit name to the agency name to the email
// local-part.
func normalize(w wireAccount) *Account {
	name := w.Name
	if name == "" {
		name = w.AgencyName
	}
	if name == "" {
		if at := strings.Index(w.Email, "@"); at > 0 {
			name = w.Email[:at]
		} else {
			name = w.Email
		}
	}

	status := StatusActive
	if w.Role == "agency" {
		status = StatusPending
		if w.IsApproved {
			status = StatusApproved
		}
	}

	return &Account{
		ID:               w.ID,
		Email:            w.Email,
		Role:             w.Role,
		DisplayName:      name,
		Status:           status,
		ProfileCompleted: w.ProfileCompleted,
	}
}
