package entities

const VeterinarianScopeColumn = "clinic_id"

type Veterinarian struct {
	ID        uint   `gorm:"primaryKey;autoIncrement:false" json:"id"`
	ClinicID  uint   `gorm:"index" json:"clinicaId"`
	Name      string `gorm:"size:255" json:"nome"`
	CRMV      string `gorm:"column:crmv;size:50" json:"crmv"`
	Specialty string `gorm:"size:255" json:"especialidade,omitempty"`
	Phone     string `gorm:"size:50" json:"telefone,omitempty"`
	Email     string `gorm:"size:255" json:"email,omitempty"`
}

func (Veterinarian) TableName() string { return "veterinarians" }

func (v Veterinarian) PrimaryKey() uint { return v.ID }
func (v Veterinarian) ScopeKey() uint   { return v.ClinicID }

type VeterinarianRequest struct {
	ClinicID  uint   `json:"clinicaId"`
	Name      string `json:"nome"`
	CRMV      string `json:"crmv"`
	Specialty string `json:"especialidade,omitempty"`
	Phone     string `json:"telefone,omitempty"`
	Email     string `json:"email,omitempty"`
}
