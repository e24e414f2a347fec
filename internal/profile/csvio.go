package profile

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ria-hunter/internal/model"
)

// WriteCSV writes canonical profiles to path.
func WriteCSV(path string, profiles []model.Profile) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "profile: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	for i := range profiles {
		if err := enc.Encode(profiles[i]); err != nil {
			return eris.Wrapf(err, "profile: encode row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "profile: flush %s", path)
	}
	return nil
}

// ReadCSV loads canonical profiles from path. Unknown columns are ignored so
// older profile files remain loadable.
func ReadCSV(path string) ([]model.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)

	dec, err := csvutil.NewDecoder(r)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read header of %s", path)
	}

	var profiles []model.Profile
	for {
		var p model.Profile
		if err := dec.Decode(&p); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "profile: decode %s", path)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}
