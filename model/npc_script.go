package model

import "time"

// NPCScript is one NPC's compiled dialog program as imported from the asset
// directory. Bytes is the raw script; Hash is its blake2b-256 hex digest.
type NPCScript struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	NPC       string    `gorm:"uniqueIndex;size:64;not null" json:"npc"`
	Name      string    `gorm:"size:64" json:"name"`
	Build     string    `gorm:"size:32;not null" json:"build"`
	MainPC    int       `gorm:"default:0" json:"main_pc"`
	Hash      string    `gorm:"size:64;index:idx_script_hash;not null" json:"hash"`
	Size      int       `gorm:"not null" json:"size"`
	Bytes     []byte    `gorm:"not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
