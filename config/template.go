package config

import (
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/csim/core/model"
)

// LoadTemplate reads a charging-station template from a yaml or json file.
// The template is read once at boot; stations hold immutable snapshots.
func LoadTemplate(path string) (*model.Template, error) {
	k := koanf.New(".")
	parser, err := parserFor(path)
	if err != nil {
		return nil, err
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	var tmpl model.Template
	if err := k.UnmarshalWithConf("", &tmpl, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	tmpl.SetDefaults()
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}
