package entities

import "time"

// AnimalScopeColumn partitions animals by their tutor.
const AnimalScopeColumn = "tutor_id"

type Animal struct {
	ID        uint       `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TutorID   uint       `gorm:"index" json:"tutorId"`
	Name      string     `gorm:"size:255" json:"nome"`
	Species   string     `gorm:"size:100" json:"especie"`
	Breed     string     `gorm:"size:100" json:"raca,omitempty"`
	Sex       string     `gorm:"size:20" json:"sexo,omitempty"`
	BirthDate *time.Time `json:"dataNascimento,omitempty"`
	WeightKg  float64    `json:"peso,omitempty"`
	PhotoURL  string     `gorm:"size:1024" json:"fotoUrl,omitempty"`
}

func (Animal) TableName() string { return "animals" }

func (a Animal) PrimaryKey() uint { return a.ID }
func (a Animal) ScopeKey() uint   { return a.TutorID }

// AnimalRequest is the body of create and update calls for animals.
type AnimalRequest struct {
	TutorID   uint       `json:"tutorId"`
	Name      string     `json:"nome"`
	Species   string     `json:"especie"`
	Breed     string     `json:"raca,omitempty"`
	Sex       string     `json:"sexo,omitempty"`
	BirthDate *time.Time `json:"dataNascimento,omitempty"`
	WeightKg  float64    `json:"peso,omitempty"`
}
