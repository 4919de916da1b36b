package vendors

import (
	"time"
)

// Class routes a vendor to one procurement category.
type Class string

const (
	ClassRawMaterial     Class = "RM"
	ClassPackingMaterial Class = "PM"
	ClassFinishedGoods   Class = "FG"
)

// Valid reports whether the class is a known vendor class.
func (c Class) Valid() bool {
	switch c {
	case ClassRawMaterial, ClassPackingMaterial, ClassFinishedGoods:
		return true
	}
	return false
}

// Vendor represents a supplier entity.
type Vendor struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Class     Class     `json:"class"`
	Address   string    `json:"address"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
