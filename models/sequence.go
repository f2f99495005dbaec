package models

import "gorm.io/gorm"

// Sequence is an ordered drip of timed emails owned by a workspace.
// Each workspace is expected to have exactly one default sequence.
type Sequence struct {
	gorm.Model
	WorkspaceID uint `gorm:"not null;index" json:"workspace_id"`

	Name      string `gorm:"not null" json:"name"`
	IsDefault bool   `gorm:"default:false;index" json:"is_default"`
	IsActive  bool   `gorm:"default:true" json:"is_active"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// SequenceStep is one entry of a sequence. StepNumber is 1-based and
// contiguous; DelayDays is the wait after the previous step.
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`

	StepNumber      int    `gorm:"not null" json:"step_number"`
	DelayDays       int    `gorm:"not null" json:"delay_days"`
	SubjectTemplate string `gorm:"not null" json:"subject_template"`
	BodyTemplate    string `gorm:"type:text;not null" json:"body_template"`
}

// FindStep returns the step with the given number, or nil.
func FindStep(steps []SequenceStep, stepNumber int) *SequenceStep {
	for i := range steps {
		if steps[i].StepNumber == stepNumber {
			return &steps[i]
		}
	}
	return nil
}
