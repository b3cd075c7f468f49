package catalog

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"querybatch/internal/domain"
)

// yamlConfig is the on-disk shape of a supplemental query type. Only
// generic-assembly configs can be declared in YAML; custom SQL generators
// are code, not data.
type yamlConfig struct {
	Table          string               `yaml:"table"`
	Fields         []string             `yaml:"fields"`
	Where          []string             `yaml:"where"`
	GroupBy        []string             `yaml:"group_by"`
	OrderBy        string               `yaml:"order_by"`
	Limit          int                  `yaml:"limit"`
	TimeField      string               `yaml:"time_field"`
	AllowedFilters []string             `yaml:"allowed_filters"`
	Customizable   bool                 `yaml:"customizable"`
	SkipEndOfDay   bool                 `yaml:"skip_end_of_day"`
	Plugins        domain.PluginFlags   `yaml:"plugins"`
	OutputFields   []domain.OutputField `yaml:"output_fields"`
}

type yamlCatalog struct {
	Types map[string]yamlConfig `yaml:"types"`
}

// ParseYAML decodes supplemental query configs from YAML.
func ParseYAML(data []byte) (map[string]*domain.QueryConfig, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}

	out := make(map[string]*domain.QueryConfig, len(doc.Types))
	for name, yc := range doc.Types {
		if yc.Table == "" {
			return nil, fmt.Errorf("type %q: table is required", name)
		}
		out[name] = &domain.QueryConfig{
			Table:          yc.Table,
			Fields:         yc.Fields,
			Where:          yc.Where,
			GroupBy:        yc.GroupBy,
			OrderBy:        yc.OrderBy,
			Limit:          yc.Limit,
			TimeField:      yc.TimeField,
			AllowedFilters: yc.AllowedFilters,
			Customizable:   yc.Customizable,
			SkipEndOfDay:   yc.SkipEndOfDay,
			Plugins:        yc.Plugins,
			OutputFields:   yc.OutputFields,
		}
	}
	return out, nil
}
