package shim

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/containerd/errdefs"

	"github.com/MarcinKonowalczyk/bftape/bf"
)

const configFilename = "config.json"

// inputEnv lets an image bake the program input into its environment
const inputEnv = "BF_INPUT"

var sourceExtensions = []string{".bf", ".b", ".brainfuck"}

// The subset of the OCI runtime spec the shim cares about
type ociSpec struct {
	Root struct {
		Path string `json:"path"`
	} `json:"root"`
	Process struct {
		Args []string `json:"args"`
		Env  []string `json:"env"`
	} `json:"process"`
}

type Config struct {
	// Root is the path to the rootfs
	Root string
	// Entrypoint is the program, relative to Root
	Entrypoint string
	// Path is the split PATH from the process environment
	Path []string
	// Input is the program input from BF_INPUT. HasInput distinguishes an
	// empty BF_INPUT from none at all.
	Input    string
	HasInput bool
}

// ReadConfig reads the bundle's config.json and checks that its entrypoint
// is a single brainfuck source file inside the rootfs.
func ReadConfig(bundle string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(bundle, configFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s not found: %w", configFilename, errdefs.ErrNotFound)
		}
		return nil, err
	}

	var spec ociSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", configFilename, err)
	}

	if spec.Root.Path == "" {
		return nil, fmt.Errorf("root path not found in config file %s: %w", configFilename, errdefs.ErrInvalidArgument)
	}

	root := spec.Root.Path
	if !filepath.IsAbs(root) {
		root = filepath.Join(bundle, root)
	}

	if len(spec.Process.Args) != 1 {
		return nil, fmt.Errorf("incorrect number of args in the CMD. Expected 1, got %d: %w", len(spec.Process.Args), errdefs.ErrInvalidArgument)
	}

	entrypoint := spec.Process.Args[0]
	if !hasSourceExtension(entrypoint) {
		return nil, fmt.Errorf("entry point (%s) is not a brainfuck source file: %w", entrypoint, errdefs.ErrInvalidArgument)
	}

	config := &Config{
		Root:       root,
		Entrypoint: entrypoint,
	}

	if _, err := os.Stat(config.FullPath()); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("script %s does not exist: %w", entrypoint, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("checking script %s: %w", entrypoint, err)
	}

	for _, env := range spec.Process.Env {
		key, value, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		switch key {
		case "PATH":
			config.Path = strings.Split(value, ":")
		case inputEnv:
			config.Input = value
			config.HasInput = true
		}
	}

	return config, nil
}

func hasSourceExtension(path string) bool {
	return slices.Contains(sourceExtensions, filepath.Ext(path))
}

func (c *Config) FullPath() string {
	return filepath.Join(c.Root, c.Entrypoint)
}

// Validate parses the entrypoint so an unbalanced program is rejected when
// the task is created rather than when it starts.
func (c *Config) Validate() error {
	source, err := os.ReadFile(c.FullPath())
	if err != nil {
		return fmt.Errorf("reading script %s: %w", c.Entrypoint, err)
	}
	if _, err := bf.Parse(bf.Tokenize(string(source))); err != nil {
		return fmt.Errorf("%w: script %s: %w", errdefs.ErrInvalidArgument, c.Entrypoint, err)
	}
	return nil
}

// Args are the interpreter arguments for the task process
func (c *Config) Args(interactive bool) []string {
	args := []string{InterpreterArg, "-file", c.FullPath()}
	switch {
	case c.HasInput:
		args = append(args, "-input", c.Input)
	case interactive:
		args = append(args, "-stdin")
	}
	return args
}
