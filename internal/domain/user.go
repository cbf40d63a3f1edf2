package domain

// Account roles
const (
	RoleUser  = "user"  // Ordinary wallet holder
	RoleAgent = "agent" // Intermediary performing cash-in/cash-out
	RoleAdmin = "admin" // Administrator
)

// User Model
type User struct {
	ID         uint   `gorm:"primaryKey"`                                     // Primary key
	Username   string `gorm:"unique;not null"`                                // Unique username
	Password   string `gorm:"not null" json:"-"`                              // Hashed password
	Role       string `gorm:"default:user"`                                   // Role: user, agent or admin
	IsApproved bool   `gorm:"not null;default:false"`                         // Agents start unapproved
	Wallet     Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
}

// IsApprovedAgent reports whether the account may act as an agent
func (u *User) IsApprovedAgent() bool {
	return u != nil && u.Role == RoleAgent && u.IsApproved
}

// ValidRole reports whether role is one of the known account roles
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}
