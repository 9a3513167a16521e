package models

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSeller     Role = "seller"
	RoleCustomer   Role = "customer"
	RoleProduction Role = "production"
)

type User struct {
	ID    uint64
	Name  string
	Email string
	Phone string
	Role  Role
}

// ContactFor returns the address used by a channel, empty when missing.
func (u *User) ContactFor(c Channel) string {
	switch c {
	case ChannelEmail:
		return u.Email
	case ChannelSMS, ChannelWhatsApp:
		return u.Phone
	}
	return ""
}
