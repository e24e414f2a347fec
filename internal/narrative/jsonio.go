package narrative

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ria-hunter/internal/model"
)

// WriteJSON writes narratives to path as an indented JSON array.
func WriteJSON(path string, narratives []model.Narrative) error {
	if narratives == nil {
		narratives = []model.Narrative{}
	}
	data, err := json.MarshalIndent(narratives, "", "  ")
	if err != nil {
		return eris.Wrap(err, "narrative: marshal")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "narrative: write %s", path)
	}
	return nil
}

// ReadJSON loads narratives from path.
func ReadJSON(path string) ([]model.Narrative, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "narrative: read %s", path)
	}
	var out []model.Narrative
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrapf(err, "narrative: unmarshal %s", path)
	}
	return out, nil
}
