package bf

import (
	"github.com/containerd/log"
)

// TapeSize is the number of cells on the tape
const TapeSize = 1024

type Interpreter struct {
	Program []Construct

	// input is consumed from the tail
	input  []byte
	output []byte

	mem         [TapeSize]uint8
	mem_ptr     int
	program_ptr int

	steps uint64
}

// NewInterpreter creates an interpreter for the program. The input is
// expected to be reversed already: the last byte is read first.
func NewInterpreter(program []Construct, input []byte) *Interpreter {
	return &Interpreter{
		Program: program,
		input:   input,
	}
}

// Reset zeroes the tape and both pointers and drops the output. Consumed
// input is not restored.
func (i *Interpreter) Reset() {
	i.program_ptr = 0
	i.mem_ptr = 0
	i.mem = [TapeSize]uint8{}
	i.output = nil
	i.steps = 0
}

// At returns the value of the cell at idx
func (i *Interpreter) At(idx int) (uint8, error) {
	if idx < 0 || idx >= len(i.mem) {
		return 0, i.fail(ErrOOBCell, idx)
	}
	return i.mem[idx], nil
}

func (i *Interpreter) CellPointer() int {
	return i.mem_ptr
}

func (i *Interpreter) InstructionPointer() int {
	return i.program_ptr
}

func (i *Interpreter) Output() []byte {
	return i.output
}

func (i *Interpreter) fail(err error, cell int) *RuntimeError {
	return &RuntimeError{Err: err, Cell: cell, Instruction: i.program_ptr}
}

func (i *Interpreter) cell() (*uint8, error) {
	if i.mem_ptr < 0 || i.mem_ptr >= len(i.mem) {
		return nil, i.fail(ErrOOBCell, i.mem_ptr)
	}
	return &i.mem[i.mem_ptr], nil
}

// Run the program until the instruction pointer runs off the end or an
// error occurs.
func (i *Interpreter) Run() ([]byte, error) {
	for i.program_ptr < len(i.Program) {
		if err := i.step(i.Program[i.program_ptr]); err != nil {
			log.L.WithError(err).WithField("steps", i.steps).Debug("program failed")
			return nil, err
		}
		i.steps++
		// A taken jump leaves program_ptr on the matching delimiter, so
		// execution resumes just past it.
		i.program_ptr++
	}

	log.L.WithFields(log.Fields{
		"steps":        i.steps,
		"output_bytes": len(i.output),
	}).Debug("program finished")

	return i.output, nil
}

func (i *Interpreter) step(c Construct) error {
	switch c.Kind {
	case MoveRight:
		if i.mem_ptr+1 >= len(i.mem) {
			return i.fail(ErrOOBMoveRight, i.mem_ptr)
		}
		i.mem_ptr++
	case MoveLeft:
		if i.mem_ptr == 0 {
			return i.fail(ErrOOBMoveLeft, i.mem_ptr)
		}
		i.mem_ptr--
	case Increment:
		cell, err := i.cell()
		if err != nil {
			return err
		}
		*cell++
	case Decrement:
		cell, err := i.cell()
		if err != nil {
			return err
		}
		*cell--
	case Write:
		cell, err := i.cell()
		if err != nil {
			return err
		}
		i.output = append(i.output, *cell)
	case Read:
		if len(i.input) == 0 {
			return i.fail(ErrExpectedInput, i.mem_ptr)
		}
		b := i.input[len(i.input)-1]
		cell, err := i.cell()
		if err != nil {
			return err
		}
		i.input = i.input[:len(i.input)-1]
		*cell = b
	case JumpIfFalsy:
		cell, err := i.cell()
		if err != nil {
			return err
		}
		if *cell == 0 {
			i.program_ptr = c.JumpIdx
		}
	case JumpIfTruthy:
		cell, err := i.cell()
		if err != nil {
			return err
		}
		if *cell != 0 {
			i.program_ptr = c.JumpIdx
		}
	default:
		panic("unknown construct " + c.String())
	}
	return nil
}

// Execute runs the program on a fresh tape and returns its output
func Execute(program []Construct, input []byte) ([]byte, error) {
	return NewInterpreter(program, input).Run()
}
