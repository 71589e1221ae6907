package models

// CoverageOptions are the add-ons of a vehicle service contract. Rates quote
// them and contracts keep a copy taken at purchase.
type CoverageOptions struct {
	BusinessUse            bool  `gorm:"not null;default:false" json:"business_use"`
	LiftKit                bool  `gorm:"not null;default:false" json:"lift_kit"`
	SealsGaskets           *bool `json:"seals_gaskets,omitempty"`
	EnhancedElectricPack   *bool `json:"enhanced_electric_pack,omitempty"`
	DisappearingDeductible *bool `json:"disappearing_deductible,omitempty"`
	WarrantyRemaining      *bool `json:"warranty_remaining,omitempty"`
}

var coverageFields = []Field{
	{Name: "BusinessUse"},
	{Name: "LiftKit"},
	{Name: "SealsGaskets"},
	{Name: "EnhancedElectricPack"},
	{Name: "DisappearingDeductible"},
	{Name: "WarrantyRemaining"},
}

// VscRate is a vehicle service contract quote returned by the pricer. Rates
// are stored as quoted and never edited.
type VscRate struct {
	Record
	CoverageOptions
	PricerID      int    `gorm:"not null" json:"pricer_id"`
	ProgramCode   string `gorm:"type:varchar(8);not null" json:"program_code"`
	ProgramText   string `gorm:"type:varchar(64);not null" json:"program_text"`
	Coverage      string `gorm:"type:varchar(64);not null" json:"coverage"`
	Price         int    `gorm:"not null" json:"price"`
	Months        int    `gorm:"not null" json:"months"`
	Miles         int    `gorm:"not null" json:"miles"`
	Deductible0   *int   `gorm:"column:deductible_0" json:"deductible_0,omitempty"`
	Deductible100 int    `gorm:"column:deductible_100;not null" json:"deductible_100"`
	Deductible250 *int   `gorm:"column:deductible_250" json:"deductible_250,omitempty"`
}

func (VscRate) TableName() string {
	return "vsc_rates"
}

func NewVscRate(pricerID int, programCode, programText, coverage string, months, miles, deductible100 int) *VscRate {
	return &VscRate{
		Record:        NewRecord(),
		PricerID:      pricerID,
		ProgramCode:   programCode,
		ProgramText:   programText,
		Coverage:      coverage,
		Price:         deductible100,
		Months:        months,
		Miles:         miles,
		Deductible100: deductible100,
	}
}

// PriceFor returns the quoted price for a deductible, if the rate offers it.
func (r *VscRate) PriceFor(d Deductible) (int, bool) {
	switch d {
	case Deductible0:
		if r.Deductible0 == nil {
			return 0, false
		}
		return *r.Deductible0, true
	case Deductible100:
		return r.Deductible100, true
	case Deductible250:
		if r.Deductible250 == nil {
			return 0, false
		}
		return *r.Deductible250, true
	default:
		return 0, false
	}
}

var vscRateSchema = &Schema{
	Entity:    "VscRate",
	Immutable: true,
	Fields: append(coverageFields[:len(coverageFields):len(coverageFields)],
		Field{Name: "PricerID", Rules: "gte=0"},
		Field{Name: "ProgramCode", Rules: "required,max=8", Derive: trim},
		Field{Name: "ProgramText", Rules: "required,max=64", Derive: trim},
		Field{Name: "Coverage", Rules: "required,max=64", Derive: trim},
		Field{Name: "Price", Rules: "gte=0"},
		Field{Name: "Months", Rules: "gte=0"},
		Field{Name: "Miles", Rules: "gte=0"},
		Field{Name: "Deductible0", Rules: "omitempty,gte=0"},
		Field{Name: "Deductible100", Rules: "gte=0"},
		Field{Name: "Deductible250", Rules: "omitempty,gte=0"},
	),
}

// VscContract is a purchased service contract, unique per vehicle and rate.
type VscContract struct {
	Record
	CoverageOptions
	UserID            string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	User              *User          `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	VehicleOwnedID    string         `gorm:"type:varchar(36);not null;uniqueIndex:uq_vsc_contracts_vehicle_rate,priority:1" json:"vehicle_owned_id"`
	VehicleOwned      *VehicleOwned  `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	VscRateID         string         `gorm:"type:varchar(36);not null;uniqueIndex:uq_vsc_contracts_vehicle_rate,priority:2" json:"vsc_rate_id"`
	VscRate           *VscRate       `gorm:"constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
	Status            ContractStatus `gorm:"type:varchar(16);not null;default:'open'" json:"status"`
	Filename          *string        `gorm:"type:varchar(128)" json:"filename,omitempty"`
	VehicleMileage    int            `gorm:"not null" json:"vehicle_mileage"`
	VehiclePrice      int            `gorm:"not null" json:"vehicle_price"`
	RetailCost        int            `gorm:"not null" json:"retail_cost"`
	VehicleInWarranty bool           `gorm:"not null;default:false" json:"vehicle_in_warranty"`
	Deductible        Deductible     `gorm:"not null" json:"deductible"`
}

func (VscContract) TableName() string {
	return "vsc_contracts"
}

func (c *VscContract) linkRelations() {
	if c.User != nil {
		c.UserID = c.User.EnsureID()
	}
	if c.VehicleOwned != nil {
		c.VehicleOwnedID = c.VehicleOwned.EnsureID()
	}
	if c.VscRate != nil {
		c.VscRateID = c.VscRate.EnsureID()
	}
}

func contractTransition(from, to string) bool {
	return ContractStatus(from).CanTransition(ContractStatus(to))
}

var vscContractSchema = &Schema{
	Entity: "VscContract",
	Fields: []Field{
		{Name: "UserID", Rules: "required,max=36"},
		{Name: "VehicleOwnedID", Rules: "required,max=36"},
		{Name: "VscRateID", Rules: "required,max=36"},
		{Name: "Status", Rules: oneOf(ContractStatus("").Values()), Derive: orDefault(string(ContractOpen)), Transition: contractTransition},
		{Name: "Filename", Rules: "omitempty,max=128", Derive: trim},
		{Name: "VehicleMileage", Rules: "gte=0"},
		{Name: "VehiclePrice", Rules: "gte=0"},
		{Name: "RetailCost", Rules: "gte=0"},
		{Name: "Deductible", Rules: oneOf(Deductible(0).Values())},
	},
}
