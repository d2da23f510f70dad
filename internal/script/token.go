package script

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenKind enumerates the tokens of the script value grammar.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber // decimal or 0x hex, optional width suffix (u8..u256)
	TokString // "..." literal
	TokHex    // x"..." byte literal
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokLBrace
	TokRBrace
	TokComma
	TokAt
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "end of input"
	case TokIdent:
		return "identifier"
	case TokNumber:
		return "number"
	case TokString:
		return "string"
	case TokHex:
		return "hex literal"
	case TokLParen:
		return "'('"
	case TokRParen:
		return "')'"
	case TokLBracket:
		return "'['"
	case TokRBracket:
		return "']'"
	case TokLBrace:
		return "'{'"
	case TokRBrace:
		return "'}'"
	case TokComma:
		return "','"
	case TokAt:
		return "'@'"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

// Token is one lexed token. For TokNumber, Text holds the digits (without
// any width suffix) and Suffix holds the width suffix if present ("u8",
// "u16", "u32", "u64", "u128", "u256").
type Token struct {
	Kind   TokenKind
	Text   string
	Suffix string
	Pos    int // byte offset in the source literal
}

// Lex tokenizes a value literal. The lexer itself is a collaborator of the
// parser: the parser only consumes []Token and can be driven by any token
// source that produces the same kinds.
func Lex(src string) ([]Token, error) {
	var toks []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, Token{Kind: TokLParen, Text: "(", Pos: i})
			i++
		case c == ')':
			toks = append(toks, Token{Kind: TokRParen, Text: ")", Pos: i})
			i++
		case c == '[':
			toks = append(toks, Token{Kind: TokLBracket, Text: "[", Pos: i})
			i++
		case c == ']':
			toks = append(toks, Token{Kind: TokRBracket, Text: "]", Pos: i})
			i++
		case c == '{':
			toks = append(toks, Token{Kind: TokLBrace, Text: "{", Pos: i})
			i++
		case c == '}':
			toks = append(toks, Token{Kind: TokRBrace, Text: "}", Pos: i})
			i++
		case c == ',':
			toks = append(toks, Token{Kind: TokComma, Text: ",", Pos: i})
			i++
		case c == '@':
			toks = append(toks, Token{Kind: TokAt, Text: "@", Pos: i})
			i++
		case c == '"':
			tok, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case c == 'x' && i+1 < len(src) && src[i+1] == '"':
			tok, next, err := lexHex(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isDigit(c):
			tok, next, err := lexNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, Token{Kind: TokIdent, Text: src[start:i], Pos: start})
		default:
			return nil, newParseError(ErrCodeBadLiteral, src,
				fmt.Sprintf("unexpected character %q at offset %d", rune(c), i))
		}
	}
	toks = append(toks, Token{Kind: TokEOF, Pos: len(src)})
	return toks, nil
}

func lexString(src string, start int) (Token, int, error) {
	i := start + 1
	var sb strings.Builder
	for i < len(src) {
		c := src[i]
		if c == '"' {
			return Token{Kind: TokString, Text: sb.String(), Pos: start}, i + 1, nil
		}
		if c == '\\' && i+1 < len(src) {
			i++
			switch src[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				return Token{}, 0, newParseError(ErrCodeBadLiteral, src,
					fmt.Sprintf("unknown escape \\%c", src[i]))
			}
			i++
			continue
		}
		sb.WriteByte(c)
		i++
	}
	return Token{}, 0, newParseError(ErrCodeBadLiteral, src, "unterminated string literal")
}

func lexHex(src string, start int) (Token, int, error) {
	i := start + 2 // past x"
	j := strings.IndexByte(src[i:], '"')
	if j < 0 {
		return Token{}, 0, newParseError(ErrCodeBadLiteral, src, "unterminated hex literal")
	}
	body := src[i : i+j]
	for k := 0; k < len(body); k++ {
		if !isHexDigit(body[k]) {
			return Token{}, 0, newParseError(ErrCodeBadLiteral, src,
				fmt.Sprintf("invalid hex digit %q", rune(body[k])))
		}
	}
	if len(body)%2 != 0 {
		return Token{}, 0, newParseError(ErrCodeBadLiteral, src, "odd-length hex literal")
	}
	return Token{Kind: TokHex, Text: body, Pos: start}, i + j + 1, nil
}

// widthSuffixes are the legal number width suffixes, longest first so that
// "u16" is not cut to "u1".
var widthSuffixes = []string{"u256", "u128", "u64", "u32", "u16", "u8"}

func lexNumber(src string, start int) (Token, int, error) {
	i := start
	hex := false
	if src[i] == '0' && i+1 < len(src) && (src[i+1] == 'x' || src[i+1] == 'X') {
		hex = true
		i += 2
	}
	digits := 0
	for i < len(src) {
		c := src[i]
		if c == '_' {
			i++
			continue
		}
		if (hex && isHexDigit(c)) || (!hex && isDigit(c)) {
			digits++
			i++
			continue
		}
		break
	}
	if digits == 0 {
		return Token{}, 0, newParseError(ErrCodeBadLiteral, src, "malformed number literal")
	}
	text := strings.ReplaceAll(src[start:i], "_", "")
	suffix := ""
	for _, s := range widthSuffixes {
		if strings.HasPrefix(src[i:], s) {
			suffix = s
			i += len(s)
			break
		}
	}
	return Token{Kind: TokNumber, Text: text, Suffix: suffix, Pos: start}, i, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
