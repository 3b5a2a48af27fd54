package ranking

import "time"

const TopSize = 10

type RankingSummary struct {
	ID             string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ParticipantID  string    `gorm:"column:participant_id;type:varchar(32);not null;uniqueIndex:idx_ranking_summaries_participant_project" json:"userId"`
	ProjectID      string    `gorm:"column:project_id;type:varchar(32);not null;uniqueIndex:idx_ranking_summaries_participant_project;index" json:"projectId"`
	TotalPoints    int       `gorm:"column:total_points;not null;default:0" json:"totalPoints"`
	CompletedDays  int       `gorm:"column:completed_days;not null;default:0" json:"completedDays"`
	CompletionRate float64   `gorm:"column:completion_rate;not null;default:0" json:"completionRate"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (RankingSummary) TableName() string {
	return "ranking_summaries"
}

// Entry is a leaderboard line: the summary joined with its participant.
type Entry struct {
	ParticipantID  string  `json:"userId"`
	Name           string  `json:"name"`
	MunicipalityID *string `json:"municipalityId,omitempty"`
	TotalPoints    int     `json:"totalPoints"`
	CompletedDays  int     `json:"completedDays"`
	CompletionRate float64 `json:"completionRate"`
}

type TopResult struct {
	Top10 []Entry `json:"top10"`
	// Position is the caller's 1-based rank, 0 when absent.
	Position int `json:"position"`
}

type RecomputeResult struct {
	ProjectID    string `json:"projectId"`
	Participants int    `json:"participants"`
	Reset        int    `json:"reset"`
}

// CompletionRate is completedDays / totalDays as a percentage.
func CompletionRate(completedDays, totalDays int) float64 {
	if totalDays <= 0 {
		return 0
	}
	return float64(completedDays) / float64(totalDays) * 100
}
