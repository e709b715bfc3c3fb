package models

import (
	"time"
)

// Address is the postal address component of a patient record
type Address struct {
	Street     string `gorm:"type:varchar(255)" json:"address"`
	Complement string `gorm:"type:varchar(255)" json:"complement"`
	City       string `gorm:"type:varchar(100)" json:"city"`
	Province   string `gorm:"type:varchar(100)" json:"province"`
	ZipCode    string `gorm:"type:varchar(20)" json:"zip_code"`
	Country    string `gorm:"type:varchar(100)" json:"country"`
}

// Physician identifies a referring or ordering physician
type Physician struct {
	ID      string `gorm:"type:varchar(64)" json:"id"`
	Name    string `gorm:"type:varchar(100)" json:"name"`
	Surname string `gorm:"type:varchar(100)" json:"surname"`
}

// Patient represents a patient registered by the HIS. The identifier is
// assigned by the HIS and never generated locally.
type Patient struct {
	ID                 string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name               string    `gorm:"type:varchar(100)" json:"name"`
	Surname            string    `gorm:"type:varchar(100)" json:"surname"`
	DateOfBirth        string    `gorm:"type:varchar(10)" json:"dob"` // YYYY-MM-DD
	Sex                string    `gorm:"type:varchar(1)" json:"sex"`
	PhoneNumber        string    `gorm:"type:varchar(40)" json:"phone_number"`
	Email              string    `gorm:"type:varchar(255)" json:"email"`
	Address            Address   `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	ReferringPhysician Physician `gorm:"embedded;embeddedPrefix:ref_physician_" json:"referring_physician"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Patient) TableName() string {
	return "patients"
}

// PatientPatch carries a partial demographic update. Nil fields keep the
// stored value; this is the merge contract of the admission-update event.
type PatientPatch struct {
	Name             *string `json:"name,omitempty"`
	Surname          *string `json:"surname,omitempty"`
	DateOfBirth      *string `json:"dob,omitempty"`
	Sex              *string `json:"sex,omitempty"`
	PhoneNumber      *string `json:"phone_number,omitempty"`
	Email            *string `json:"email,omitempty"`
	Street           *string `json:"address,omitempty"`
	City             *string `json:"city,omitempty"`
	ZipCode          *string `json:"zip_code,omitempty"`
	Country          *string `json:"country,omitempty"`
	PhysicianID      *string `json:"physician_id,omitempty"`
	PhysicianName    *string `json:"physician_name,omitempty"`
	PhysicianSurname *string `json:"physician_surname,omitempty"`
}

// Apply merges the patch over the patient record in place
func (p *PatientPatch) Apply(patient *Patient) {
	setIf(&patient.Name, p.Name)
	setIf(&patient.Surname, p.Surname)
	setIf(&patient.DateOfBirth, p.DateOfBirth)
	setIf(&patient.Sex, p.Sex)
	setIf(&patient.PhoneNumber, p.PhoneNumber)
	setIf(&patient.Email, p.Email)
	setIf(&patient.Address.Street, p.Street)
	setIf(&patient.Address.City, p.City)
	setIf(&patient.Address.ZipCode, p.ZipCode)
	setIf(&patient.Address.Country, p.Country)
	setIf(&patient.ReferringPhysician.ID, p.PhysicianID)
	setIf(&patient.ReferringPhysician.Name, p.PhysicianName)
	setIf(&patient.ReferringPhysician.Surname, p.PhysicianSurname)
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
