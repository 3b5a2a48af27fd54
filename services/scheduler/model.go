package scheduler

import (
	"time"

	"gorm.io/datatypes"
)

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobEnqueued JobStatus = "enqueued"
	JobSuccess  JobStatus = "success"
	JobFailed   JobStatus = "failed"
)

// ScheduledJob records one scheduled unit of work for a project.
type ScheduledJob struct {
	ID          string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Name        string         `gorm:"column:name;type:varchar(100);not null;index" json:"name"`
	ProjectID   string         `gorm:"column:project_id;type:varchar(32);index;not null" json:"projectId"`
	Status      JobStatus      `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"`
	ErrorMsg    string         `gorm:"column:error_msg;type:text" json:"errorMsg,omitempty"`
	StartedAt   *time.Time     `gorm:"column:started_at" json:"startedAt"`
	CompletedAt *time.Time     `gorm:"column:completed_at" json:"completedAt"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (ScheduledJob) TableName() string {
	return "scheduled_jobs"
}
