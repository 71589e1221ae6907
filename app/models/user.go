package models

type User struct {
	Record
	MembershipID   string      `gorm:"type:varchar(36);not null;index" json:"membership_id"`
	Membership     *Membership `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"membership,omitempty"`
	AddressID      *string     `gorm:"type:varchar(36);index" json:"address_id,omitempty"`
	Address        *Address    `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"address,omitempty"`
	Role           Role        `gorm:"type:varchar(16);not null;default:'owner'" json:"role"`
	Email          string      `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	EmailVerified  bool        `gorm:"not null;default:false" json:"email_verified"`
	FirstName      *string     `gorm:"type:varchar(64)" json:"first_name,omitempty"`
	LastName       *string     `gorm:"type:varchar(64)" json:"last_name,omitempty"`
	Image          *string     `gorm:"type:varchar(255)" json:"image,omitempty"`
	Phone          *string     `gorm:"type:varchar(9)" json:"phone,omitempty"`
	AuthProviderID string      `gorm:"type:varchar(64);not null;uniqueIndex" json:"auth_provider_id"`
}

func (User) TableName() string {
	return "users"
}

// NewUser returns the owner of the given membership.
func NewUser(membership *Membership, email, authProviderID string) *User {
	u := &User{
		Record:         NewRecord(),
		Membership:     membership,
		Role:           RoleOwner,
		Email:          email,
		AuthProviderID: authProviderID,
	}
	u.linkRelations()
	return u
}

func (u *User) linkRelations() {
	if u.Membership != nil {
		u.MembershipID = u.Membership.EnsureID()
	}
	if u.Address != nil {
		id := u.Address.EnsureID()
		u.AddressID = &id
	}
}

var userSchema = &Schema{
	Entity: "User",
	Fields: []Field{
		{Name: "MembershipID", Rules: "required,max=36"},
		{Name: "AddressID", Rules: "omitempty,max=36"},
		{Name: "Role", Rules: oneOf(Role("").Values()), Derive: orDefault(string(RoleOwner))},
		{Name: "Email", Rules: "required,email,max=255", Derive: NormalizeEmail},
		{Name: "FirstName", Rules: "omitempty,max=64", Derive: trim},
		{Name: "LastName", Rules: "omitempty,max=64", Derive: trim},
		{Name: "Image", Rules: "omitempty,max=255"},
		{Name: "Phone", Rules: "omitempty,numeric,max=9", Derive: DigitsOnly},
		{Name: "AuthProviderID", Rules: "required,max=64", Derive: trim},
	},
}
