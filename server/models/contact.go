package models

type Contact struct {
	BaseModel
	Name         string `json:"name" validate:"required"`
	Phone        string `json:"phone" validate:"required,e164" gorm:"not null"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
	Relationship string `json:"relationship,omitempty"`
	IsPrimary    bool   `json:"is_primary"`
	UserID       uint   `json:"user_id" gorm:"not null"`
}
