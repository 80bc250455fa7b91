package source

import (
	"fmt"

	"github.com/BartekS5/bigsitemap/pkg/models"
)

// Requirements lists what a generation run needs from a source.
type Requirements struct {
	PartialUpdate bool
}

type Validator struct {
	Requirements Requirements
}

func NewValidator(req Requirements) *Validator {
	return &Validator{Requirements: req}
}

// ValidateSource rejects sources that cannot satisfy the requirements.
func (v *Validator) ValidateSource(src Source) error {
	if src == nil {
		return fmt.Errorf("%w: nil source", models.ErrSourceCapability)
	}
	if src.Name() == "" {
		return fmt.Errorf("%w: source without a name", models.ErrSourceCapability)
	}

	pk := PrimaryKeyOf(src)
	if pk != "" {
		if err := ValidateIdentifier(pk); err != nil {
			return fmt.Errorf("%w: source %s: %v", models.ErrSourceCapability, src.Name(), err)
		}
	}
	if v.Requirements.PartialUpdate && pk == "" {
		return fmt.Errorf("%w: source %s has no primary key, partial update is unavailable", models.ErrSourceCapability, src.Name())
	}
	return nil
}
