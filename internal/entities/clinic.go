package entities

// Clinic rows are not partitioned: the whole table is refreshed as one scope.
type Clinic struct {
	ID           uint    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         string  `gorm:"size:255" json:"nome"`
	Address      string  `gorm:"size:512" json:"endereco,omitempty"`
	Phone        string  `gorm:"size:50" json:"telefone,omitempty"`
	Email        string  `gorm:"size:255" json:"email,omitempty"`
	OpeningHours string  `gorm:"size:255" json:"horarioFuncionamento,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}

func (Clinic) TableName() string { return "clinics" }

func (c Clinic) PrimaryKey() uint { return c.ID }
func (c Clinic) ScopeKey() uint   { return 0 }

type ClinicRequest struct {
	Name         string  `json:"nome"`
	Address      string  `json:"endereco,omitempty"`
	Phone        string  `json:"telefone,omitempty"`
	Email        string  `json:"email,omitempty"`
	OpeningHours string  `json:"horarioFuncionamento,omitempty"`
	Latitude     float64 `json:"latitude,omitempty"`
	Longitude    float64 `json:"longitude,omitempty"`
}
