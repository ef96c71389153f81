package shim

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/containerd/errdefs"

	"github.com/MarcinKonowalczyk/bftape/bf"
	"github.com/MarcinKonowalczyk/bftape/utils"
)

// writeBundle lays out a bundle with a rootfs holding the given scripts
func writeBundle(t *testing.T, args []string, env []string, scripts map[string]string) string {
	t.Helper()
	bundle := t.TempDir()
	rootfs := filepath.Join(bundle, "rootfs")
	if err := os.MkdirAll(rootfs, 0755); err != nil {
		t.Fatal(err)
	}
	for name, source := range scripts {
		if err := os.WriteFile(filepath.Join(rootfs, name), []byte(source), 0644); err != nil {
			t.Fatal(err)
		}
	}

	var spec ociSpec
	spec.Root.Path = "rootfs"
	spec.Process.Args = args
	spec.Process.Env = env
	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, configFilename), data, 0644); err != nil {
		t.Fatal(err)
	}
	return bundle
}

func TestReadConfig(t *testing.T) {
	bundle := writeBundle(t,
		[]string{"hello.bf"},
		[]string{"PATH=/usr/bin:/bin", "HOME=/root", "BF_INPUT=abc", "BROKEN"},
		map[string]string{"hello.bf": "++++[->++++++++<]>+."},
	)

	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, config.Root, filepath.Join(bundle, "rootfs"))
	utils.AssertEqual(t, config.Entrypoint, "hello.bf")
	utils.AssertEqual(t, config.FullPath(), filepath.Join(bundle, "rootfs", "hello.bf"))
	utils.AssertEqualArrays(t, config.Path, []string{"/usr/bin", "/bin"})
	utils.Assert(t, config.HasInput, "Expected BF_INPUT to be picked up")
	utils.AssertEqual(t, config.Input, "abc")
	utils.AssertNoError(t, config.Validate())
}

func TestReadConfig_Missing(t *testing.T) {
	_, err := ReadConfig(t.TempDir())
	utils.AssertErrorIs(t, err, errdefs.ErrNotFound)
}

func TestReadConfig_Invalid(t *testing.T) {
	scripts := map[string]string{"main.bf": "+.", "main.sh": "echo"}

	for name, args := range map[string][]string{
		"no args":       {},
		"too many args": {"main.bf", "extra"},
		"not brainfuck": {"main.sh"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadConfig(writeBundle(t, args, nil, scripts))
			utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
		})
	}

	_, err := ReadConfig(writeBundle(t, []string{"other.b"}, nil, scripts))
	utils.AssertErrorIs(t, err, errdefs.ErrNotFound)
}

func TestReadConfig_NoRoot(t *testing.T) {
	bundle := t.TempDir()
	data := []byte(`{"process": {"args": ["main.bf"]}}`)
	if err := os.WriteFile(filepath.Join(bundle, configFilename), data, 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadConfig(bundle)
	utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
}

func TestConfig_Validate(t *testing.T) {
	bundle := writeBundle(t, []string{"broken.brainfuck"}, nil, map[string]string{"broken.brainfuck": "+[[-]"})
	config, err := ReadConfig(bundle)
	utils.AssertNoError(t, err)

	err = config.Validate()
	utils.AssertErrorIs(t, err, errdefs.ErrInvalidArgument)
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopConstruct)

	var pe *bf.ParsingError
	utils.Assert(t, errors.As(err, &pe), "Expected *bf.ParsingError")
	utils.AssertEqual(t, pe.Idx, 1)
}

func TestConfig_Args(t *testing.T) {
	config := &Config{Root: "/rootfs", Entrypoint: "main.bf"}
	utils.AssertEqualArrays(t, config.Args(false), []string{InterpreterArg, "-file", "/rootfs/main.bf"})
	utils.AssertEqualArrays(t, config.Args(true), []string{InterpreterArg, "-file", "/rootfs/main.bf", "-stdin"})

	// baked in input wins over stdin
	config.Input, config.HasInput = "xyz", true
	utils.AssertEqualArrays(t, config.Args(true), []string{InterpreterArg, "-file", "/rootfs/main.bf", "-input", "xyz"})
}
