package store

import (
	"encoding/json"

	"github.com/yourmoment/core/internal/models"
)

func marshalFilters(f models.ProcessFilters) ([]byte, error) {
	return json.Marshal(f)
}

func unmarshalFilters(data []byte, out *models.ProcessFilters) error {
	if len(data) == 0 {
		*out = models.ProcessFilters{}
		return nil
	}
	return json.Unmarshal(data, out)
}
