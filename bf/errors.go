package bf

import (
	"errors"
	"fmt"
)

var (
	ErrUnmatchedLoopConstruct = errors.New("unmatched loop construct")

	ErrOOBMoveLeft   = errors.New("cell pointer moved left past the start of the tape")
	ErrOOBMoveRight  = errors.New("cell pointer moved right past the end of the tape")
	ErrOOBCell       = errors.New("cell access out of bounds")
	ErrExpectedInput = errors.New("expected input")

	ErrInvalidOutput = errors.New("output is not valid utf-8")
)

// ParsingError is returned by Parse. Idx is the index of the offending
// token in the token sequence.
type ParsingError struct {
	Err error
	Idx int
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("parsing: %v at token %d", e.Err, e.Idx)
}

func (e *ParsingError) Unwrap() error {
	return e.Err
}

// RuntimeError is returned by the interpreter.
type RuntimeError struct {
	Err error
	// Cell is the cell pointer when the error occurred. For ErrOOBCell this
	// is the index which could not be accessed.
	Cell int
	// Instruction is the index of the construct being executed.
	Instruction int
}

func (e *RuntimeError) Error() string {
	if errors.Is(e.Err, ErrOOBCell) {
		return fmt.Sprintf("runtime: %v: cell %d (instruction %d)", e.Err, e.Cell, e.Instruction)
	}
	return fmt.Sprintf("runtime: %v (instruction %d)", e.Err, e.Instruction)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// Stage names the pipeline stage an error from Interpret came from.
func Stage(err error) string {
	var pe *ParsingError
	var re *RuntimeError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return "parsing"
	case errors.As(err, &re):
		return "runtime"
	case errors.Is(err, ErrInvalidOutput):
		return "output"
	default:
		return ""
	}
}
