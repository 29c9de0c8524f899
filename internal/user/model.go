// Package user はユーザーアカウントの永続化と認証情報の検証を提供します。
package user

import "time"

// User はログイン可能なアカウントを表します。
type User struct {
	ID             uint    `gorm:"primaryKey"`
	Username       string  `gorm:"size:64;uniqueIndex;not null"`
	Email          *string `gorm:"size:255;uniqueIndex"`
	FirstName      string  `gorm:"size:100"`
	LastName       string  `gorm:"size:100"`
	HashedPassword string  `gorm:"not null"`
	IsActive       bool    `gorm:"not null;default:true"`
	Role           string  `gorm:"size:32;not null;default:user"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName は users テーブルを使うことを gorm に伝えます。
func (User) TableName() string {
	return "users"
}

// RegisterInput は新規登録フォームの内容です。
type RegisterInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}
