package biz

import (
	"github.com/vigilhq/vigil/internal/biz/usecase"
)

// Usecases contains all usecases
type Usecases struct {
	Definitions *usecase.DefinitionUsecase
	Admission   *usecase.AdmissionUsecase
	Delivery    *usecase.DeliveryUsecase
	Cooldown    *usecase.CooldownTracker
}
