package entities

type UserRole string

const (
	UserRoleTutor        UserRole = "TUTOR"
	UserRoleVeterinarian UserRole = "VETERINARIO"
	UserRoleAdmin        UserRole = "ADMIN"
)

// User is a remote account as cached on the device. It is not partitioned.
type User struct {
	ID        uint     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string   `gorm:"size:255" json:"nome"`
	Email     string   `gorm:"size:255;index" json:"email"`
	Phone     string   `gorm:"size:50" json:"telefone,omitempty"`
	Role      UserRole `gorm:"size:20" json:"tipo"`
	AvatarURL string   `gorm:"size:1024" json:"fotoUrl,omitempty"`
}

func (User) TableName() string { return "users" }

func (u User) PrimaryKey() uint { return u.ID }
func (u User) ScopeKey() uint   { return 0 }

type UserRequest struct {
	Name     string   `json:"nome"`
	Email    string   `json:"email"`
	Phone    string   `json:"telefone,omitempty"`
	Role     UserRole `json:"tipo,omitempty"`
	Password string   `json:"senha,omitempty"`
}
