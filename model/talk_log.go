package model

import (
	"time"

	"gorm.io/datatypes"
)

// TalkLog records one conversation turn for diagnostics. It is write-only:
// nothing reads it back to restore a conversation.
type TalkLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_talk_trace;size:36;not null" json:"trace_id"`
	SessionID  string         `gorm:"index:idx_talk_session;size:36;not null" json:"session_id"`
	NPC        string         `gorm:"index:idx_talk_npc;size:64;not null" json:"npc"`
	Player     string         `gorm:"size:32" json:"player"`
	Mode       string         `gorm:"size:16;not null" json:"mode"`
	Typed      string         `gorm:"type:text" json:"typed"`
	Outcome    string         `gorm:"size:16;not null" json:"outcome"`
	Keys       datatypes.JSON `json:"keys"`
	Lines      datatypes.JSON `json:"lines"`
	StartPC    int            `json:"start_pc"`
	NextPC     int            `json:"next_pc"`
	Error      string         `gorm:"type:text" json:"error"`
	DurationUs int64          `json:"duration_us"`
	CreatedAt  time.Time      `gorm:"index:idx_talk_created;autoCreateTime:milli" json:"created_at"`
}
