package declare

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"snowops/core/reconcile"
	"snowops/internal/errors"
)

func loadYAML(file string) (reconcile.DesiredState, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return reconcile.DesiredState{}, errors.Configf("failed to read %s: %v", file, err)
	}

	var d reconcile.DesiredState
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return reconcile.DesiredState{}, parseError(file, err)
	}
	return d, nil
}

func loadJSON(file string) (reconcile.DesiredState, error) {
	src, err := os.ReadFile(file)
	if err != nil {
		return reconcile.DesiredState{}, errors.Configf("failed to read %s: %v", file, err)
	}

	var d reconcile.DesiredState
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return reconcile.DesiredState{}, parseError(file, err)
	}
	return d, nil
}
