package models

type Address struct {
	Record
	Address1 *string `gorm:"type:varchar(128)" json:"address1,omitempty"`
	Address2 *string `gorm:"type:varchar(128)" json:"address2,omitempty"`
	City     *string `gorm:"type:varchar(64)" json:"city,omitempty"`
	State    *string `gorm:"type:varchar(2)" json:"state,omitempty"`
	ZipCode  *string `gorm:"type:varchar(10)" json:"zip_code,omitempty"`
}

func (Address) TableName() string {
	return "addresses"
}

var addressSchema = &Schema{
	Entity: "Address",
	Fields: []Field{
		{Name: "Address1", Rules: "omitempty,max=128", Derive: trim},
		{Name: "Address2", Rules: "omitempty,max=128", Derive: trim},
		{Name: "City", Rules: "omitempty,max=64", Derive: trim},
		{Name: "State", Rules: "omitempty,len=2,alpha", Derive: NormalizeState},
		{Name: "ZipCode", Rules: "omitempty,max=10", Derive: trim},
	},
}
