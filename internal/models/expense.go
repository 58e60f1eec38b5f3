package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Company is one of the two businesses whose expenses are tracked.
type Company string

const (
	CompanySwatch Company = "Swatch"
	CompanySWS    Company = "SWS"
)

// Companies lists every valid company.
var Companies = []Company{CompanySwatch, CompanySWS}

// Valid reports whether c is a known company.
func (c Company) Valid() bool {
	return slices.Contains(Companies, c)
}

// Category classifies an expense.
type Category string

const (
	CategoryTruck          Category = "truck"
	CategoryTrailer        Category = "trailer"
	CategoryDMV            Category = "dmv"
	CategoryParts          Category = "parts"
	CategoryPhoneTracker   Category = "phone-tracker"
	CategoryOtherExpenses  Category = "other-expenses"
	CategoryToll           Category = "toll"
	CategoryOfficeSupplies Category = "office-supplies"
	CategoryFuelDiesel     Category = "fuel-diesel"
	CategoryDEF            Category = "def"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryTruck,
	CategoryTrailer,
	CategoryDMV,
	CategoryParts,
	CategoryPhoneTracker,
	CategoryOtherExpenses,
	CategoryToll,
	CategoryOfficeSupplies,
	CategoryFuelDiesel,
	CategoryDEF,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Expense represents a single business expense.
type Expense struct {
	ID             int64      `json:"id"`
	Company        Company    `json:"company"`
	Category       Category   `json:"category"`
	Date           time.Time  `json:"date"`
	Price          float64    `json:"price"`
	Description    *string    `json:"description"`
	Gallons        *float64   `json:"gallons"`
	BusinessUnitID *int64     `json:"business_unit_id"`
	TruckID        *int64     `json:"truck_id"`
	TrailerID      *int64     `json:"trailer_id"`
	FuelStationID  *int64     `json:"fuel_station_id"`
	AttachmentPath *string    `json:"attachment_path"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`

	BusinessUnit *Reference `json:"business_unit,omitempty"`
	Truck        *Reference `json:"truck,omitempty"`
	Trailer      *Reference `json:"trailer,omitempty"`
	FuelStation  *Reference `json:"fuel_station,omitempty"`
}

// ExpenseFilter narrows an expense listing. Zero values mean "no filter".
type ExpenseFilter struct {
	Company        Company
	Category       Category
	BusinessUnitID int64
	TruckID        int64
	TrailerID      int64
	FuelStationID  int64
	StartDate      time.Time
	EndDate        time.Time
	Keyword        string
	Skip           int
	Limit          int
}

// ReferenceKind names a lookup table that expenses point to.
type ReferenceKind string

const (
	KindBusinessUnit ReferenceKind = "business_unit"
	KindTruck        ReferenceKind = "truck"
	KindTrailer      ReferenceKind = "trailer"
	KindFuelStation  ReferenceKind = "fuel_station"
)

// ReferenceKinds lists every reference kind.
var ReferenceKinds = []ReferenceKind{KindBusinessUnit, KindTruck, KindTrailer, KindFuelStation}

// Label is the human readable name of the kind.
func (k ReferenceKind) Label() string {
	switch k {
	case KindBusinessUnit:
		return "business unit"
	case KindTruck:
		return "truck"
	case KindTrailer:
		return "trailer"
	case KindFuelStation:
		return "fuel station"
	}
	return string(k)
}

// IdentifierField is "number" for vehicles and "name" for everything else.
func (k ReferenceKind) IdentifierField() string {
	if k == KindTruck || k == KindTrailer {
		return "number"
	}
	return "name"
}

// MaxIdentifierLen is the longest identifier the kind accepts.
func (k ReferenceKind) MaxIdentifierLen() int {
	if k == KindTruck || k == KindTrailer {
		return 50
	}
	return 100
}

// Reference is a truck, trailer, fuel station or business unit.
type Reference struct {
	ID         int64         `json:"id"`
	Kind       ReferenceKind `json:"-"`
	Identifier string        `json:"-"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  *time.Time    `json:"updated_at"`
}

// MarshalJSON exposes the identifier under the kind's field name.
func (r Reference) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"id":                     r.ID,
		r.Kind.IdentifierField(): r.Identifier,
		"created_at":             r.CreatedAt,
		"updated_at":             r.UpdatedAt,
	})
}
