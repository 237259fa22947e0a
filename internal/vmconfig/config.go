// Package vmconfig loads TOML configuration files into arbitrary
// structs, the way utils.CargarConfiguracion did for JSON in the
// original module split.
package vmconfig

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Load decodes the TOML file at path into a fresh T and returns it.
// Unlike the teacher's loader, it never calls os.Exit: a library has no
// business terminating its host process, so the caller (cmd/vmdemo's
// main) decides how to react to a load failure.
func Load[T any](path string) (*T, error) {
	var cfg T
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "vmconfig: decode %s", path)
	}
	return &cfg, nil
}
