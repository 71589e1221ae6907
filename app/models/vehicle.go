package models

// Vehicle holds the columns shared by every vehicle table.
type Vehicle struct {
	UserID string `gorm:"type:varchar(36);not null;index" json:"user_id"`
	VIN    string `gorm:"column:vin;type:varchar(17);not null" json:"vin"`
}

var vehicleFields = []Field{
	{Name: "UserID", Rules: "required,max=36"},
	{Name: "VIN", Rules: "required,len=17,alphanum", Derive: NormalizeVIN},
}

// VehicleFavorite is a marketplace listing a user saved.
type VehicleFavorite struct {
	Record
	Vehicle
	User            *User   `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	ListingID       string  `gorm:"type:varchar(64);not null" json:"listing_id"`
	Mileage         *int    `json:"mileage,omitempty"`
	AdvertisedPrice int     `gorm:"not null;default:0" json:"advertised_price"`
	ListingURL      string  `gorm:"type:varchar(512);not null" json:"listing_url"`
	ImageURL        *string `gorm:"type:varchar(512)" json:"image_url,omitempty"`
	City            *string `gorm:"type:varchar(64)" json:"city,omitempty"`
	State           *string `gorm:"type:varchar(2)" json:"state,omitempty"`
}

func (VehicleFavorite) TableName() string {
	return "vehicle_favorites"
}

func NewVehicleFavorite(user *User, vin, listingID, listingURL string, advertisedPrice int) *VehicleFavorite {
	f := &VehicleFavorite{
		Record:          NewRecord(),
		Vehicle:         Vehicle{VIN: vin},
		User:            user,
		ListingID:       listingID,
		ListingURL:      listingURL,
		AdvertisedPrice: advertisedPrice,
	}
	f.linkRelations()
	return f
}

func (f *VehicleFavorite) linkRelations() {
	if f.User != nil {
		f.UserID = f.User.EnsureID()
	}
}

var vehicleFavoriteSchema = &Schema{
	Entity: "VehicleFavorite",
	Fields: append(vehicleFields[:len(vehicleFields):len(vehicleFields)],
		Field{Name: "ListingID", Rules: "required,max=64", Derive: trim},
		Field{Name: "Mileage", Rules: "omitempty,gte=0"},
		Field{Name: "AdvertisedPrice", Rules: "gte=0"},
		Field{Name: "ListingURL", Rules: "required,url,max=512", Derive: trim},
		Field{Name: "ImageURL", Rules: "omitempty,url,max=512", Derive: trim},
		Field{Name: "City", Rules: "omitempty,max=64", Derive: trim},
		Field{Name: "State", Rules: "omitempty,len=2,alpha", Derive: NormalizeState},
	),
}

// VehicleOwned is a vehicle registered by its owner.
type VehicleOwned struct {
	Record
	Vehicle
	User         *User   `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	LicensePlate *string `gorm:"type:varchar(16)" json:"license_plate,omitempty"`
	Mileage      int     `gorm:"not null;default:0" json:"mileage"`
	PayoffAmount int     `gorm:"not null;default:0" json:"payoff_amount"`
}

func (VehicleOwned) TableName() string {
	return "vehicle_owned"
}

func NewVehicleOwned(user *User, vin string, mileage int) *VehicleOwned {
	v := &VehicleOwned{
		Record:  NewRecord(),
		Vehicle: Vehicle{VIN: vin},
		User:    user,
		Mileage: mileage,
	}
	v.linkRelations()
	return v
}

func (v *VehicleOwned) linkRelations() {
	if v.User != nil {
		v.UserID = v.User.EnsureID()
	}
}

var vehicleOwnedSchema = &Schema{
	Entity: "VehicleOwned",
	Fields: append(vehicleFields[:len(vehicleFields):len(vehicleFields)],
		Field{Name: "LicensePlate", Rules: "omitempty,max=16", Derive: upper},
		Field{Name: "Mileage", Rules: "gte=0"},
		Field{Name: "PayoffAmount", Rules: "gte=0"},
	),
}

// VehicleOwnedValuation is a point in time price prediction for an owned
// vehicle. Valuations are never edited; a new one is recorded instead.
type VehicleOwnedValuation struct {
	Record
	VehicleOwnedID string        `gorm:"type:varchar(36);not null;index" json:"vehicle_owned_id"`
	VehicleOwned   *VehicleOwned `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	PredictedPrice int           `gorm:"not null" json:"predicted_price"`
	Mileage        int           `gorm:"not null" json:"mileage"`
	ZipCode        string        `gorm:"type:varchar(10);not null" json:"zip_code"`
}

func (VehicleOwnedValuation) TableName() string {
	return "vehicle_owned_valuations"
}

func NewValuation(vehicle *VehicleOwned, predictedPrice, mileage int, zipCode string) *VehicleOwnedValuation {
	v := &VehicleOwnedValuation{
		Record:         NewRecord(),
		VehicleOwned:   vehicle,
		PredictedPrice: predictedPrice,
		Mileage:        mileage,
		ZipCode:        zipCode,
	}
	v.linkRelations()
	return v
}

func (v *VehicleOwnedValuation) linkRelations() {
	if v.VehicleOwned != nil {
		v.VehicleOwnedID = v.VehicleOwned.EnsureID()
	}
}

var valuationSchema = &Schema{
	Entity:    "VehicleOwnedValuation",
	Immutable: true,
	Fields: []Field{
		{Name: "VehicleOwnedID", Rules: "required,max=36"},
		{Name: "PredictedPrice", Rules: "gte=0"},
		{Name: "Mileage", Rules: "gte=0"},
		{Name: "ZipCode", Rules: "required,max=10", Derive: trim},
	},
}
