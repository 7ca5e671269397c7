package model

import "time"

type District struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (d District) Snapshot() map[string]any {
	return map[string]any{"name": d.Name, "is_active": d.IsActive}
}

type Route struct {
	ID        int64     `json:"id"`
	Number    string    `json:"number"`
	Name      *string   `json:"name,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Route) Snapshot() map[string]any {
	return map[string]any{"number": r.Number, "name": r.Name, "is_active": r.IsActive}
}
