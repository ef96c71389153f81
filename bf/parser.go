package bf

import "strconv"

// Construct is a parsed instruction. For the two jump kinds JumpIdx is the
// index of the matching delimiter in the same construct slice.
type Construct struct {
	Kind    Token
	JumpIdx int
}

func (c Construct) String() string {
	if c.Kind.IsJump() {
		return c.Kind.String() + "@" + strconv.Itoa(c.JumpIdx)
	}
	return c.Kind.String()
}

// Parse resolves the loop delimiters in a single pass. Openers are kept on
// a stack until their closer shows up, at which point both ends are linked
// to each other.
func Parse(tokens []Token) ([]Construct, error) {
	constructs := make([]Construct, len(tokens))
	var open []int

	for idx, tok := range tokens {
		constructs[idx] = Construct{Kind: tok}
		switch tok {
		case JumpIfFalsy:
			open = append(open, idx)
		case JumpIfTruthy:
			if len(open) == 0 {
				return nil, &ParsingError{Err: ErrUnmatchedLoopConstruct, Idx: idx}
			}
			match := open[len(open)-1]
			open = open[:len(open)-1]
			constructs[match].JumpIdx = idx
			constructs[idx].JumpIdx = match
		}
	}

	if len(open) > 0 {
		// innermost unmatched opener
		return nil, &ParsingError{Err: ErrUnmatchedLoopConstruct, Idx: open[len(open)-1]}
	}

	return constructs, nil
}
