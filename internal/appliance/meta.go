package appliance

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/nerrad567/geappliances-bridge/internal/erd"
)

// MetaRow is one row of the meta-ERD table: the source field of a meta ERD,
// the entity templates it affects, and the transform to run on them.
//
// Target templates contain "{}" where the device name goes, for example
// "{}_0001_Test_Number". Allowable-option targets append ".<option>".
type MetaRow struct {
	FeatureType string
	Version     string
	MetaERD     erd.ID
	SourceField string
	Targets     []string
	Func        string
}

// MetaTable is the parsed meta-ERD document.
type MetaTable struct {
	Rows []MetaRow
}

type metaTransform struct {
	Fields []string `json:"fields"`
	Func   string   `json:"func"`
}

// feature type -> version -> meta ERD -> source field -> transform
type metaDocument map[string]map[string]map[erd.ID]map[string]metaTransform

// LoadMetaTable reads and parses the meta-ERD document at path.
func LoadMetaTable(path string) (*MetaTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading meta ERD table: %w", err)
	}
	return ParseMetaTable(data)
}

// ParseMetaTable parses a meta-ERD document. Rows come out in a stable order.
func ParseMetaTable(data []byte) (*MetaTable, error) {
	var doc metaDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: meta ERD table: %w", ErrInvalidDocument, err)
	}

	table := &MetaTable{}
	for featureType, versions := range doc {
		for version, erds := range versions {
			for metaERD, fields := range erds {
				for field, tr := range fields {
					if tr.Func == "" {
						return nil, fmt.Errorf("%w: meta ERD %s field %q has no func", ErrInvalidDocument, metaERD, field)
					}
					table.Rows = append(table.Rows, MetaRow{
						FeatureType: featureType,
						Version:     version,
						MetaERD:     metaERD,
						SourceField: field,
						Targets:     append([]string(nil), tr.Fields...),
						Func:        tr.Func,
					})
				}
			}
		}
	}

	sort.Slice(table.Rows, func(i, j int) bool {
		a, b := table.Rows[i], table.Rows[j]
		if a.FeatureType != b.FeatureType {
			return a.FeatureType < b.FeatureType
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		if a.MetaERD != b.MetaERD {
			return a.MetaERD < b.MetaERD
		}
		return a.SourceField < b.SourceField
	})
	return table, nil
}
