package model

import "time"

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	IsActive *bool  `json:"is_active"`
}

type UpdateUserRequest struct {
	Email    *string `json:"email"`
	Name     *string `json:"name"`
	Role     *Role   `json:"role"`
	IsActive *bool   `json:"is_active"`
	Password *string `json:"password"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}

type CreateStopRequest struct {
	Address            string     `json:"address"`
	Landmark           *string    `json:"landmark"`
	District           string     `json:"district"`
	Routes             *string    `json:"routes"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Status             StopStatus `json:"status"`
	Condition          Condition  `json:"condition"`
	MeetsStandards     *bool      `json:"meets_standards"`
	StopType           StopType   `json:"stop_type"`
	LegsCount          *int       `json:"legs_count"`
	YearBuilt          *int       `json:"year_built"`
	LastRepairDate     *time.Time `json:"last_repair_date"`
	PaintColor         *string    `json:"paint_color"`
	RoofType           RoofType   `json:"roof_type"`
	RoofCondition      Condition  `json:"roof_condition"`
	GlassCondition     Condition  `json:"glass_condition"`
	HasElectricity     bool       `json:"has_electricity"`
	HasBin             bool       `json:"has_bin"`
	BinCondition       *Condition `json:"bin_condition"`
	NextInspectionDate *time.Time `json:"next_inspection_date"`
}

type UpdateStopRequest struct {
	Address            *string     `json:"address"`
	Landmark           *string     `json:"landmark"`
	District           *string     `json:"district"`
	Routes             *string     `json:"routes"`
	Latitude           *float64    `json:"latitude"`
	Longitude          *float64    `json:"longitude"`
	Status             *StopStatus `json:"status"`
	Condition          *Condition  `json:"condition"`
	MeetsStandards     *bool       `json:"meets_standards"`
	StopType           *StopType   `json:"stop_type"`
	LegsCount          *int        `json:"legs_count"`
	YearBuilt          *int        `json:"year_built"`
	LastRepairDate     *time.Time  `json:"last_repair_date"`
	PaintColor         *string     `json:"paint_color"`
	RoofType           *RoofType   `json:"roof_type"`
	RoofCondition      *Condition  `json:"roof_condition"`
	GlassCondition     *Condition  `json:"glass_condition"`
	HasElectricity     *bool       `json:"has_electricity"`
	HasBin             *bool       `json:"has_bin"`
	BinCondition       *Condition  `json:"bin_condition"`
	NextInspectionDate *time.Time  `json:"next_inspection_date"`
}

type InspectionRequest struct {
	NextInspectionDate *time.Time `json:"next_inspection_date"`
}

type DistrictRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type RouteRequest struct {
	Number   *string `json:"number"`
	Name     *string `json:"name"`
	IsActive *bool   `json:"is_active"`
}

type ExportFilter struct {
	Format    string `json:"format"`
	District  string `json:"district,omitempty"`
	Status    string `json:"status,omitempty"`
	Condition string `json:"condition,omitempty"`
}
