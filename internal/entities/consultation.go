package entities

import "time"

// ConsultationScopeColumn partitions consultations by the user who booked them.
const ConsultationScopeColumn = "user_id"

type ConsultationStatus string

const (
	ConsultationScheduled ConsultationStatus = "AGENDADA"
	ConsultationDone      ConsultationStatus = "REALIZADA"
	ConsultationCancelled ConsultationStatus = "CANCELADA"
)

// Consultation carries display fields joined by the server (animal, vet and
// clinic names); they are only ever written from a remote response.
type Consultation struct {
	ID               uint               `gorm:"primaryKey;autoIncrement:false" json:"id"`
	UserID           uint               `gorm:"index" json:"userId"`
	AnimalID         uint               `json:"animalId"`
	VeterinarianID   uint               `json:"veterinarioId"`
	ClinicID         uint               `json:"clinicaId"`
	ScheduledAt      time.Time          `json:"dataHora"`
	Reason           string             `gorm:"type:text" json:"motivo,omitempty"`
	Diagnosis        string             `gorm:"type:text" json:"diagnostico,omitempty"`
	Status           ConsultationStatus `gorm:"size:20" json:"status"`
	AnimalName       string             `gorm:"size:255" json:"animalNome,omitempty"`
	VeterinarianName string             `gorm:"size:255" json:"veterinarioNome,omitempty"`
	ClinicName       string             `gorm:"size:255" json:"clinicaNome,omitempty"`
}

func (Consultation) TableName() string { return "consultations" }

func (c Consultation) PrimaryKey() uint { return c.ID }
func (c Consultation) ScopeKey() uint   { return c.UserID }

type ConsultationRequest struct {
	UserID         uint               `json:"userId"`
	AnimalID       uint               `json:"animalId"`
	VeterinarianID uint               `json:"veterinarioId"`
	ClinicID       uint               `json:"clinicaId"`
	ScheduledAt    time.Time          `json:"dataHora"`
	Reason         string             `json:"motivo,omitempty"`
	Diagnosis      string             `json:"diagnostico,omitempty"`
	Status         ConsultationStatus `json:"status,omitempty"`
}
