package bf_test

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/MarcinKonowalczyk/bftape/bf"
	"github.com/MarcinKonowalczyk/bftape/utils"
)

type corpusProgram struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
	Error  string `yaml:"error"`
}

var programErrors = map[string]error{
	"unmatched":      bf.ErrUnmatchedLoopConstruct,
	"oob_left":       bf.ErrOOBMoveLeft,
	"oob_right":      bf.ErrOOBMoveRight,
	"expected_input": bf.ErrExpectedInput,
	"invalid_output": bf.ErrInvalidOutput,
}

func loadPrograms(t *testing.T) []corpusProgram {
	t.Helper()
	data, err := os.ReadFile("testdata/programs.yaml")
	if err != nil {
		t.Fatalf("reading programs: %v", err)
	}
	var programs []corpusProgram
	if err := yaml.Unmarshal(data, &programs); err != nil {
		t.Fatalf("decoding programs: %v", err)
	}
	return programs
}

func TestInterpret_Programs(t *testing.T) {
	for _, p := range loadPrograms(t) {
		t.Run(p.Name, func(t *testing.T) {
			result, err := bf.Interpret(p.Source, p.Input)
			if p.Error == "" {
				utils.AssertNoError(t, err)
				utils.AssertEqual(t, result, p.Output)
				return
			}
			target, ok := programErrors[p.Error]
			if !ok {
				t.Fatalf("unknown error kind %q", p.Error)
			}
			utils.AssertErrorIs(t, err, target)
			utils.AssertEqual(t, result, "")
		})
	}
}

func TestInterpret_Exclamation(t *testing.T) {
	result, err := bf.Interpret("++++[->++++++++<]>+.", "")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, result, "!")
}

func TestInterpret_OOBRight(t *testing.T) {
	_, err := bf.Interpret(strings.Repeat(">", 1024), "")
	utils.AssertErrorIs(t, err, bf.ErrOOBMoveRight)
	utils.AssertEqual(t, bf.Stage(err), "runtime")
}

func TestInterpret_ExpectedInput(t *testing.T) {
	_, err := bf.Interpret(",", "")
	utils.AssertErrorIs(t, err, bf.ErrExpectedInput)

	var re *bf.RuntimeError
	utils.Assert(t, errors.As(err, &re), "Expected *bf.RuntimeError")
}

func TestInterpret_UnmatchedOpen(t *testing.T) {
	_, err := bf.Interpret("[", "")
	utils.AssertErrorIs(t, err, bf.ErrUnmatchedLoopConstruct)
	utils.AssertEqual(t, bf.Stage(err), "parsing")

	var pe *bf.ParsingError
	utils.Assert(t, errors.As(err, &pe), "Expected *bf.ParsingError")
	utils.AssertEqual(t, pe.Idx, 0)
}

func TestInterpret_InputOrder(t *testing.T) {
	// read consumes input left to right
	result, err := bf.Interpret(",.,.,.", "abc")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, result, "abc")

	// leftover input is ignored
	result, err = bf.Interpret(",.", "abc")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, result, "a")
}

func TestInterpret_UTF8Passthrough(t *testing.T) {
	result, err := bf.Interpret(",.,.", "ż")
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, result, "ż")
}

func TestInterpret_InvalidOutput(t *testing.T) {
	_, err := bf.Interpret("-.", "")
	utils.AssertErrorIs(t, err, bf.ErrInvalidOutput)
	utils.AssertEqual(t, bf.Stage(err), "output")
}

func TestStage(t *testing.T) {
	utils.AssertEqual(t, bf.Stage(nil), "")
	utils.AssertEqual(t, bf.Stage(errors.New("other")), "")
}

func TestRun(t *testing.T) {
	var out bytes.Buffer
	err := bf.Run(",[.,]", strings.NewReader("hello"), &out)
	utils.AssertErrorIs(t, err, bf.ErrExpectedInput)
	utils.AssertEqual(t, out.String(), "")

	out.Reset()
	err = bf.Run("--[----->+<]>-----.", nil, &out)
	utils.AssertNoError(t, err)
	utils.AssertEqual(t, out.String(), "a")
}
