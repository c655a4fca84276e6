package models

import "github.com/angelmondragon/wardrobe-backend/pkg/enums"

// Category groups items and scopes them to an audience. A nil audience is
// visible to every audience, like UNISEX.
type Category struct {
	ID       int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string          `gorm:"column:name;type:text;not null"`
	Audience *enums.Audience `gorm:"column:audience;type:text"`
}
