package models

// Variant is a purchasable item, color and size combination. A nil Stock is
// treated as unlimited.
type Variant struct {
	ID      int64 `gorm:"column:id;primaryKey;autoIncrement"`
	ItemID  int64 `gorm:"column:item_id;not null;uniqueIndex:ux_variants_item_color_size,priority:1"`
	ColorID int64 `gorm:"column:color_id;not null;uniqueIndex:ux_variants_item_color_size,priority:2"`
	SizeID  int64 `gorm:"column:size_id;not null;uniqueIndex:ux_variants_item_color_size,priority:3"`
	Stock   *int  `gorm:"column:stock;check:chk_variants_stock,stock >= 0"`
}
