package participant

import (
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleAdminPleno      Role = "ADMIN_PLENO"
	RoleGestorMunicipio Role = "GESTOR_MUNICIPIO"
	RoleServidor        Role = "SERVIDOR"
)

const (
	DefaultName       = "Participante"
	PlaceholderDomain = "noemail.local"
)

type Participant struct {
	ID                   string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	Name                 string         `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Email                string         `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone                *string        `gorm:"column:phone;type:varchar(32);uniqueIndex" json:"phone,omitempty"`
	ManychatSubscriberID *string        `gorm:"column:manychat_subscriber_id;type:varchar(64);uniqueIndex" json:"manychatSubscriberId,omitempty"`
	Role                 Role           `gorm:"column:role;type:varchar(32);not null;default:'SERVIDOR'" json:"role"`
	MunicipalityID       *string        `gorm:"column:municipality_id;type:varchar(32);index" json:"municipalityId,omitempty"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	DeletedAt            gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Participant) TableName() string {
	return "participants"
}

// Identity is what an inbound message tells us about its sender.
type Identity struct {
	SubscriberID string
	Phone        string
	Name         string
}

func (i Identity) Empty() bool {
	return i.SubscriberID == "" && i.Phone == ""
}
