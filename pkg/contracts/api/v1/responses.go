package api

import (
	"dateresample/pkg/contracts/domain"
)

// ResampleResponse carries the resampled table.
type ResampleResponse struct {
	Status string        `json:"status"`
	Rows   int           `json:"rows"`
	Data   *domain.Table `json:"data"`
}
