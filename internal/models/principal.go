package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind selects which collection a principal lives in.
type Kind string

const (
	KindUser   Kind = "user"
	KindAgency Kind = "agency"
)

// ParseKind normalizes a userType value from a request. Anything that is not
// "agency" is treated as a traveler, matching the original API contract.
func ParseKind(s string) Kind {
	if s == string(KindAgency) {
		return KindAgency
	}
	return KindUser
}

func (k Kind) Valid() bool {
	return k == KindUser || k == KindAgency
}

// Principal is a traveler or a travel agency. The two kinds share most
// fields and are stored in separate collections; Kind is the discriminator
// and is persisted as the role field.
type Principal struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	Email    string `bson:"email" json:"email"`
	Password string `bson:"password,omitempty" json:"-"` // Argon2id hash, never serialized
	GoogleID string `bson:"google_id,omitempty" json:"-"`
	Role     Kind   `bson:"role" json:"role"`

	ProfileCompleted bool   `bson:"profile_completed" json:"profileCompleted"`
	ContactNumber    string `bson:"contact_number,omitempty" json:"contactNumber,omitempty"`

	// Traveler fields
	Name        string     `bson:"name,omitempty" json:"name,omitempty"`
	DateOfBirth *time.Time `bson:"date_of_birth,omitempty" json:"dateOfBirth,omitempty"`
	Nationality string     `bson:"nationality,omitempty" json:"nationality,omitempty"`
	IsVerified  bool       `bson:"is_verified" json:"isVerified"`

	// Agency fields
	AgencyName      string `bson:"agency_name,omitempty" json:"agencyName,omitempty"`
	LicenseNumber   string `bson:"license_number,omitempty" json:"licenseNumber,omitempty"`
	LicenseDocument string `bson:"license_document,omitempty" json:"licenseDocument,omitempty"`
	Address         string `bson:"address,omitempty" json:"address,omitempty"`
	Description     string `bson:"description,omitempty" json:"description,omitempty"`
	IsApproved      bool   `bson:"is_approved" json:"isApproved"`

	// Password reset state. Either all set or all cleared together.
	PasswordResetToken    string     `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpires  *time.Time `bson:"password_reset_expires,omitempty" json:"-"`
	PasswordResetAttempts int        `bson:"password_reset_attempts,omitempty" json:"-"`
}

// DisplayName follows the precedence the client uses: explicit name,
// then agency name, then the email local-part.
func (p *Principal) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	if p.AgencyName != "" {
		return p.AgencyName
	}
	for i := 0; i < len(p.Email); i++ {
		if p.Email[i] == '@' {
			return p.Email[:i]
		}
	}
	return p.Email
}

// ClearResetFields drops all password-reset state at once.
func (p *Principal) ClearResetFields() {
	p.PasswordResetToken = ""
	p.PasswordResetExpires = nil
	p.PasswordResetAttempts = 0
}

// Public returns the JSON-safe view returned by auth endpoints. Kept as a
// map so user and agency responses share one envelope shape.
func (p *Principal) Public() map[string]interface{} {
	out := map[string]interface{}{
		"id":               p.ID.Hex(),
		"email":            p.Email,
		"role":             p.Role,
		"profileCompleted": p.ProfileCompleted,
	}
	if p.ContactNumber != "" {
		out["contactNumber"] = p.ContactNumber
	}
	switch p.Role {
	case KindAgency:
		out["agencyName"] = p.AgencyName
		out["isApproved"] = p.IsApproved
		if p.LicenseNumber != "" {
			out["licenseNumber"] = p.LicenseNumber
		}
		if p.LicenseDocument != "" {
			out["licenseDocument"] = p.LicenseDocument
		}
		if p.Address != "" {
			out["address"] = p.Address
		}
		if p.Description != "" {
			out["description"] = p.Description
		}
	default:
		out["name"] = p.Name
		out["isVerified"] = p.IsVerified
		if p.Nationality != "" {
			out["nationality"] = p.Nationality
		}
		if p.DateOfBirth != nil {
			out["dateOfBirth"] = p.DateOfBirth
		}
	}
	return out
}
