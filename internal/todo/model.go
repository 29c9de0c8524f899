// Package todo はユーザーごとのTODO管理機能を提供します。
package todo

import (
	"time"

	"github.com/yourusername/todo-web/internal/user"
)

const (
	MinPriority = 1
	MaxPriority = 5
)

// Todo は所有者が1人だけ存在するタスクです。
type Todo struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Priority    int        `gorm:"not null" json:"priority"`
	Complete    bool       `gorm:"not null;default:false" json:"complete"`
	OwnerID     uint       `gorm:"not null;index" json:"owner_id"`
	Owner       *user.User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName は todos テーブルを使うことを gorm に伝えます。
func (Todo) TableName() string {
	return "todos"
}

// Input は追加・編集フォームから受け取る値です。
type Input struct {
	Title       string `form:"title" json:"title"`
	Description string `form:"description" json:"description"`
	Priority    int    `form:"priority" json:"priority"`
}
