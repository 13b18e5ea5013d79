package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/safeher/safeher/server/auth"
	"gorm.io/gorm"
)

var ErrDuplicateEmail = errors.New("a user with this email already exists")

var allFieldsExceptPassword = []string{"id",
	"name",
	"email",
	"phone",
	"is_verified",
	"two_factor_enabled",
	"last_login",
	"created_at",
	"updated_at",
}

type User struct {
	BaseModel
	Name             string     `json:"name" validate:"required"`
	Email            string     `json:"email" validate:"required,email" gorm:"not null;unique"`
	Phone            string     `json:"phone" validate:"required,e164" gorm:"not null"`
	Password         string     `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	IsVerified       bool       `json:"is_verified" gorm:"default:false"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" gorm:"default:false"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	Contacts         []Contact  `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Devices          []Device   `json:"devices,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (user *User) AddContact(contact *Contact) error {
	contact.UserID = user.ID
	return db.Create(contact).Error
}

func (user *User) LoadContacts() error {
	// TODO: Add pagination
	return db.Limit(500).Find(&user.Contacts, "user_id = ?", user.ID).Error
}

// DeleteContact removes one of the user's own contacts. A contact id
// belonging to another user is reported as not found.
func (user *User) DeleteContact(id interface{}) error {
	result := db.Where("user_id = ?", user.ID).Delete(&Contact{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// PrimaryContacts returns every contact flagged to receive emergency
// notifications. is_primary is a filter, not an ordering - all
// matches are returned.
func (user *User) PrimaryContacts() ([]Contact, error) {
	contacts := []Contact{}

	err := db.Where("user_id = ? AND is_primary = true", user.ID).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

func (user *User) AddDevice(device *Device) error {
	device.UserID = user.ID

	existing := Device{}
	err := db.First(&existing, "user_id = ? AND device_id = ?", user.ID, device.DeviceID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		device.LastActive = time.Now()
		return db.Create(device).Error
	}

	if err != nil {
		return err
	}

	return db.Model(&existing).Updates(map[string]interface{}{
		"device_type": device.DeviceType,
		"os_version":  device.OSVersion,
		"app_version": device.AppVersion,
		"last_active": time.Now(),
	}).Error
}

func (user *User) LoadDevices() error {
	return db.Find(&user.Devices, "user_id = ?", user.ID).Error
}

func (user *User) TouchLastLogin() error {
	now := time.Now()
	user.LastLogin = &now
	return db.Model(&User{}).Where("id = ?", user.ID).Update("last_login", now).Error
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error

	if err != nil {
		return "", err
	}
	return user.Password, nil
}

func CreateUser(user *User) error {
	err := db.First(&User{}, "email = ?", user.Email).Error
	if err == nil {
		return ErrDuplicateEmail
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	return db.Create(user).Error
}
