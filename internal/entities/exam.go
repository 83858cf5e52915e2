package entities

import "time"

const ExamScopeColumn = "animal_id"

type Exam struct {
	ID             uint      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	AnimalID       uint      `gorm:"index" json:"animalId"`
	VeterinarianID uint      `json:"veterinarioId,omitempty"`
	Type           string    `gorm:"size:100" json:"tipo"`
	Description    string    `gorm:"type:text" json:"descricao,omitempty"`
	Result         string    `gorm:"type:text" json:"resultado,omitempty"`
	PerformedAt    time.Time `json:"data"`
	FileURL        string    `gorm:"size:1024" json:"arquivoUrl,omitempty"`
}

func (Exam) TableName() string { return "exams" }

func (e Exam) PrimaryKey() uint { return e.ID }
func (e Exam) ScopeKey() uint   { return e.AnimalID }

type ExamRequest struct {
	AnimalID       uint      `json:"animalId"`
	VeterinarianID uint      `json:"veterinarioId,omitempty"`
	Type           string    `json:"tipo"`
	Description    string    `json:"descricao,omitempty"`
	Result         string    `json:"resultado,omitempty"`
	PerformedAt    time.Time `json:"data"`
}
