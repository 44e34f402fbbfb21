package schema

type Role string

const (
	RoleAdmin           Role = "admin"
	RoleServiceProvider Role = "service_provider"
	RoleClient          Role = "client"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleServiceProvider, RoleClient:
		return true
	}
	return false
}

// User is any account: admins, service providers and clients share one table
// and are told apart by Role. Role is set once at creation.
type User struct {
	UUIDV7

	Name         string `gorm:"size:255;not null" json:"name"`
	Email        string `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         Role   `gorm:"size:32;not null;index" json:"role"`
	Timezone     string `gorm:"size:64;not null;default:'UTC'" json:"timezone"`

	TimeStamped
}
