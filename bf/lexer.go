package bf

// Token is one of the 8 recognised instructions. The value is the source
// character itself.
type Token byte

const (
	MoveRight    Token = '>'
	MoveLeft     Token = '<'
	Increment    Token = '+'
	Decrement    Token = '-'
	Write        Token = '.'
	Read         Token = ','
	JumpIfFalsy  Token = '['
	JumpIfTruthy Token = ']'
)

func lex(c byte) (Token, bool) {
	switch c {
	case '>':
		return MoveRight, true
	case '<':
		return MoveLeft, true
	case '+':
		return Increment, true
	case '-':
		return Decrement, true
	case '.':
		return Write, true
	case ',':
		return Read, true
	case '[':
		return JumpIfFalsy, true
	case ']':
		return JumpIfTruthy, true
	default:
		return 0, false
	}
}

func (t Token) String() string {
	if _, ok := lex(byte(t)); ok {
		return string(rune(t))
	}
	return "?"
}

// IsJump reports whether the token is one of the two loop delimiters
func (t Token) IsJump() bool {
	return t == JumpIfFalsy || t == JumpIfTruthy
}

// Tokenize scans the source byte by byte. Anything which is not an
// instruction is a comment and is dropped.
func Tokenize(source string) []Token {
	tokens := make([]Token, 0, len(source))
	for i := 0; i < len(source); i++ {
		if tok, ok := lex(source[i]); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// PreLex strips everything but the instruction characters from the source.
func PreLex(source string) string {
	result := make([]byte, 0, len(source))
	for i := 0; i < len(source); i++ {
		if _, ok := lex(source[i]); ok {
			result = append(result, source[i])
		}
	}
	return string(result)
}
