package actionlog

import "time"

type Status string

const (
	StatusPending   Status = "PENDENTE"
	StatusCompleted Status = "CONCLUIDO"
)

type ActionLog struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ParticipantID  string     `gorm:"column:participant_id;type:varchar(32);not null;uniqueIndex:idx_action_logs_participant_project_day" json:"userId"`
	ProjectID      string     `gorm:"column:project_id;type:varchar(32);not null;uniqueIndex:idx_action_logs_participant_project_day;index" json:"projectId"`
	DayNumber      int        `gorm:"column:day_number;not null;uniqueIndex:idx_action_logs_participant_project_day" json:"dayNumber"`
	Status         Status     `gorm:"column:status;type:varchar(16);not null;default:'PENDENTE'" json:"status"`
	PointsAwarded  int        `gorm:"column:points_awarded;not null;default:0" json:"pointsAwarded"`
	PhotoURL       *string    `gorm:"column:photo_url;type:text" json:"photoUrl"`
	PhotoObjectKey *string    `gorm:"column:photo_object_key;type:varchar(255)" json:"photoObjectKey,omitempty"`
	Notes          *string    `gorm:"column:notes;type:text" json:"notes"`
	CompletedAt    *time.Time `gorm:"column:completed_at" json:"completedAt"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ActionLog) TableName() string {
	return "action_logs"
}

type Outcome string

const (
	OutcomeCreated  Outcome = "created"
	OutcomeUpdated  Outcome = "updated"
	OutcomeNoChange Outcome = "no_change"
)

// Submission is one completion report for a participant's journey day.
type Submission struct {
	ParticipantID string
	ProjectID     string
	DayNumber     int
	PhotoURL      string
	Notes         string
}

// Result tells the ranking aggregator what changed. Delta is zero for
// OutcomeNoChange.
type Result struct {
	Outcome         Outcome
	Log             *ActionLog
	Award           int
	Delta           int
	IsNewCompletion bool
	// NewPhoto is set when the stored photo URL changed and needs archiving.
	NewPhoto bool
}
