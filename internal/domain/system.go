package domain

import (
	"time"
)

type SysConfig struct {
	ID        int64     `json:"id,string"   form:"id"`
	Sort      int       `json:"sort"  form:"sort"`
	Type      string    `gorm:"index" json:"type" form:"type"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	Value     string    `json:"value" form:"value"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysConfig) TableName() string {
	return "sys_config"
}

// User is a storefront account. Staff users may sign in to the admin api.
type User struct {
	ID        int64      `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Username  string     `gorm:"size:150;uniqueIndex" json:"username"`
	Email     string     `gorm:"size:254" json:"email"`
	Password  string     `gorm:"size:128" json:"-"`
	IsStaff   bool       `json:"is_staff"`
	IsActive  bool       `json:"is_active"`
	LastLogin *time.Time `json:"last_login"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName Specify table name
func (User) TableName() string {
	return "sys_user"
}
