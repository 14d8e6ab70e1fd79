package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName            string             `bson:"fullName" json:"fullName"`
	Email               string             `bson:"email" json:"email"`
	PasswordHash        string             `bson:"passwordHash" json:"-"`
	Role                Role               `bson:"role" json:"role"`
	IsEmailVerified     bool               `bson:"isEmailVerified" json:"isEmailVerified"`
	RefreshTokenVersion int64              `bson:"refreshTokenVersion" json:"-"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the populated form of a user reference.
type UserSummary struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	FullName string             `bson:"fullName" json:"fullName"`
	Email    string             `bson:"email" json:"email"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, FullName: u.FullName, Email: u.Email}
}

// Identity is what an authenticated request carries.
type Identity struct {
	UserID primitive.ObjectID
	Role   Role
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
