package render

import (
	"encoding/json"

	"github.com/ppiankov/ttpmap/internal/model"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Render(report *model.Report) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}
