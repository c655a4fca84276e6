package models

type Color struct {
	ID   int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Name string  `gorm:"column:name;type:text;not null;uniqueIndex:ux_colors_name"`
	RGB  *string `gorm:"column:rgb;type:text"`
}

type Size struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string `gorm:"column:name;type:text;not null;uniqueIndex:ux_sizes_name"`
	SortOrder int    `gorm:"column:sort_order;not null;default:0"`
}
