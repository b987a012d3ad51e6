package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MLModel is a registry row for a trained detector snapshot.
type MLModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string     `gorm:"size:100;not null;uniqueIndex:idx_model_name_version" json:"name"`
	Version         string     `gorm:"size:50;not null;uniqueIndex:idx_model_name_version" json:"version"`
	ModelType       string     `gorm:"size:50;not null" json:"modelType"`
	FilePath        string     `gorm:"size:500" json:"filePath"`
	Accuracy        float64    `json:"accuracy"`
	Precision       float64    `json:"precision"`
	Recall          float64    `json:"recall"`
	F1Score         float64    `json:"f1Score"`
	AUCScore        float64    `json:"aucScore"`
	TrainingSamples int        `json:"trainingSamples"`
	Metrics         JSON       `gorm:"type:jsonb" json:"metrics"`
	Hyperparameters JSON       `gorm:"type:jsonb" json:"hyperparameters"`
	IsActive        bool       `gorm:"default:false;index" json:"isActive"`
	TrainedAt       time.Time  `json:"trainedAt"`
	DeployedAt      *time.Time `json:"deployedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (m *MLModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
