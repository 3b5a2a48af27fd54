package project

import "time"

const (
	DefaultTotalDays = 21
	DefaultPoints    = 1
)

type Project struct {
	ID        string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Code      string     `gorm:"column:code;type:varchar(32);uniqueIndex" json:"code"`
	Name      string     `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Slug      string     `gorm:"column:slug;type:varchar(255);index" json:"slug"`
	StartDate *time.Time `gorm:"column:start_date" json:"startDate,omitempty"`
	TotalDays int        `gorm:"column:total_days;not null;default:21" json:"totalDays"`
	IsActive  bool       `gorm:"column:is_active;not null;default:true;index" json:"isActive"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Project) TableName() string {
	return "projects"
}

// Days is the configured length of the journey, 21 when unset.
func (p *Project) Days() int {
	if p == nil || p.TotalDays <= 0 {
		return DefaultTotalDays
	}
	return p.TotalDays
}

type DayTemplate struct {
	ID            string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	ProjectID     string    `gorm:"column:project_id;type:varchar(32);not null;uniqueIndex:idx_day_templates_project_day" json:"projectId"`
	DayNumber     int       `gorm:"column:day_number;not null;uniqueIndex:idx_day_templates_project_day" json:"dayNumber"`
	Title         string    `gorm:"column:title;type:varchar(255);not null" json:"title"`
	Description   string    `gorm:"column:description;type:text" json:"description"`
	Category      string    `gorm:"column:category;type:varchar(64)" json:"category"`
	Points        int       `gorm:"column:points;not null;default:1" json:"points"`
	RequiresPhoto bool      `gorm:"column:requires_photo;not null;default:false" json:"requiresPhoto"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (DayTemplate) TableName() string {
	return "day_templates"
}
