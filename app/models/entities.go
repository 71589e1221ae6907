package models

func init() {
	register(&Membership{}, membershipSchema)
	register(&Address{}, addressSchema)
	register(&User{}, userSchema)
	register(&VehicleFavorite{}, vehicleFavoriteSchema)
	register(&VehicleOwned{}, vehicleOwnedSchema)
	register(&VehicleOwnedValuation{}, valuationSchema)
	register(&VscRate{}, vscRateSchema)
	register(&VscContract{}, vscContractSchema)
}

// All returns one instance of every persisted model in foreign key order,
// ready to be passed to AutoMigrate.
func All() []any {
	return []any{
		&Membership{},
		&MembershipSequence{},
		&Address{},
		&User{},
		&VehicleFavorite{},
		&VehicleOwned{},
		&VehicleOwnedValuation{},
		&VscRate{},
		&VscContract{},
	}
}
