package model

import (
	"fmt"
	"time"
)

type StopStatus string

const (
	StopActive     StopStatus = "active"
	StopRepair     StopStatus = "repair"
	StopDismantled StopStatus = "dismantled"
	StopInactive   StopStatus = "inactive"
	StopOther      StopStatus = "other"
)

func (s StopStatus) Valid() bool {
	switch s {
	case StopActive, StopRepair, StopDismantled, StopInactive, StopOther:
		return true
	}
	return false
}

type Condition string

const (
	ConditionExcellent    Condition = "excellent"
	ConditionSatisfactory Condition = "satisfactory"
	ConditionNeedsRepair  Condition = "needs_repair"
	ConditionCritical     Condition = "critical"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionSatisfactory, ConditionNeedsRepair, ConditionCritical:
		return true
	}
	return false
}

type StopType string

const (
	StopType4m StopType = "4m"
	StopType7m StopType = "7m"
)

func (t StopType) Valid() bool {
	return t == StopType4m || t == StopType7m
}

type RoofType string

const (
	RoofFlat   RoofType = "flat"
	RoofArched RoofType = "arched"
	RoofPeaked RoofType = "peaked"
)

func (t RoofType) Valid() bool {
	switch t {
	case RoofFlat, RoofArched, RoofPeaked:
		return true
	}
	return false
}

type BusStop struct {
	ID                 int64      `json:"id"`
	StopCode           string     `json:"stop_id"`
	PassportNumber     string     `json:"passport_number"`
	Address            string     `json:"address"`
	Landmark           *string    `json:"landmark,omitempty"`
	District           string     `json:"district"`
	Routes             *string    `json:"routes,omitempty"`
	Latitude           float64    `json:"latitude"`
	Longitude          float64    `json:"longitude"`
	Status             StopStatus `json:"status"`
	Condition          Condition  `json:"condition"`
	MeetsStandards     bool       `json:"meets_standards"`
	StopType           StopType   `json:"stop_type"`
	LegsCount          int        `json:"legs_count"`
	YearBuilt          *int       `json:"year_built,omitempty"`
	LastRepairDate     *time.Time `json:"last_repair_date,omitempty"`
	PaintColor         *string    `json:"paint_color,omitempty"`
	RoofType           RoofType   `json:"roof_type"`
	RoofCondition      Condition  `json:"roof_condition"`
	GlassCondition     Condition  `json:"glass_condition"`
	HasElectricity     bool       `json:"has_electricity"`
	HasBin             bool       `json:"has_bin"`
	BinCondition       *Condition `json:"bin_condition,omitempty"`
	LastInspectionDate *time.Time `json:"last_inspection_date,omitempty"`
	InspectorName      *string    `json:"inspector_name,omitempty"`
	NextInspectionDate *time.Time `json:"next_inspection_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CreatedBy          *string    `json:"created_by,omitempty"`
	Photos             []Photo    `json:"photos,omitempty"`
}

// QRPayload is the text a client encodes into the stop's passport QR code.
func (s BusStop) QRPayload() string {
	return "passport:" + s.PassportNumber
}

// Snapshot returns the editable columns keyed by their wire names.
func (s BusStop) Snapshot() map[string]any {
	return map[string]any{
		"address":              s.Address,
		"landmark":             s.Landmark,
		"district":             s.District,
		"routes":               s.Routes,
		"latitude":             s.Latitude,
		"longitude":            s.Longitude,
		"status":               s.Status,
		"condition":            s.Condition,
		"meets_standards":      s.MeetsStandards,
		"stop_type":            s.StopType,
		"legs_count":           s.LegsCount,
		"year_built":           s.YearBuilt,
		"last_repair_date":     s.LastRepairDate,
		"paint_color":          s.PaintColor,
		"roof_type":            s.RoofType,
		"roof_condition":       s.RoofCondition,
		"glass_condition":      s.GlassCondition,
		"has_electricity":      s.HasElectricity,
		"has_bin":              s.HasBin,
		"bin_condition":        s.BinCondition,
		"last_inspection_date": s.LastInspectionDate,
		"inspector_name":       s.InspectorName,
		"next_inspection_date": s.NextInspectionDate,
	}
}

type ChangeLog struct {
	ID        int64     `json:"id"`
	StopID    int64     `json:"bus_stop_id"`
	UserID    *string   `json:"user_id,omitempty"`
	UserName  string    `json:"user_name"`
	FieldName string    `json:"field_name"`
	OldValue  *string   `json:"old_value"`
	NewValue  *string   `json:"new_value"`
	ChangedAt time.Time `json:"changed_at"`
	IPAddress string    `json:"ip_address,omitempty"`
}

type StopQuery struct {
	Search         string
	District       string
	Status         string
	Condition      string
	HasElectricity *bool
	HasBin         *bool
	MeetsStandards *bool
	SortBy         string
	SortDesc       bool
	Page           int
	Limit          int
}

type StopStats struct {
	Total              int            `json:"total_stops"`
	ByStatus           map[string]int `json:"by_status"`
	ByCondition        map[string]int `json:"by_condition"`
	InspectedThisMonth int            `json:"inspected_this_month"`
	ByDistrict         map[string]int `json:"by_district"`
}

type AttentionItem struct {
	ID        int64      `json:"id"`
	StopCode  string     `json:"stop_id"`
	Address   string     `json:"address"`
	District  string     `json:"district"`
	Condition Condition  `json:"condition"`
	Status    StopStatus `json:"status"`
}

type Dashboard struct {
	Stats           StopStats       `json:"stats"`
	AttentionNeeded []AttentionItem `json:"attention_needed"`
}

// NextStopCode returns the lowest free BS-NNN code.
func NextStopCode(existing []string) string {
	return firstFree("BS-%03d", existing)
}

// NextPassportNumber returns the lowest free TP-<year>-NNNN number.
func NextPassportNumber(year int, existing []string) string {
	return firstFree(fmt.Sprintf("TP-%d-%%04d", year), existing)
}

func firstFree(format string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		taken[code] = struct{}{}
	}
	for n := 1; ; n++ {
		candidate := fmt.Sprintf(format, n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
