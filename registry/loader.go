package registry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/edurecord/student-records-compliance/types"
)

// regionFile is the on-disk shape of a region configuration document.
type regionFile struct {
	Regions []types.RegionConfig `json:"regions"`
}

// LoadFile reads region configurations from a JSON file. The file holds a
// single object with a "regions" array matching the RegionConfig shape.
func LoadFile(path string) ([]types.RegionConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open region config file: %w", err)
	}
	defer f.Close()

	return LoadReader(f)
}

// LoadReader reads region configurations from an open JSON stream.
func LoadReader(r io.Reader) ([]types.RegionConfig, error) {
	var file regionFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode region configs: %w", err)
	}
	if len(file.Regions) == 0 {
		return nil, fmt.Errorf("region config document contains no regions")
	}
	return file.Regions, nil
}
