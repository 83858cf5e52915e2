package entities

import "time"

const VaccineScopeColumn = "animal_id"

type Vaccine struct {
	ID             uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	AnimalID       uint       `gorm:"index" json:"animalId"`
	VeterinarianID uint       `json:"veterinarioId,omitempty"`
	Name           string     `gorm:"size:255" json:"nome"`
	Batch          string     `gorm:"size:100" json:"lote,omitempty"`
	AppliedAt      time.Time  `json:"dataAplicacao"`
	NextDoseAt     *time.Time `json:"proximaDose,omitempty"`
}

func (Vaccine) TableName() string { return "vaccines" }

func (v Vaccine) PrimaryKey() uint { return v.ID }
func (v Vaccine) ScopeKey() uint   { return v.AnimalID }

type VaccineRequest struct {
	AnimalID       uint       `json:"animalId"`
	VeterinarianID uint       `json:"veterinarioId,omitempty"`
	Name           string     `json:"nome"`
	Batch          string     `json:"lote,omitempty"`
	AppliedAt      time.Time  `json:"dataAplicacao"`
	NextDoseAt     *time.Time `json:"proximaDose,omitempty"`
}
