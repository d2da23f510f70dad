package script

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"github.com/roach88/chainscript/internal/chain"
)

// Parser consumes a token stream and produces one symbolic Value. It
// recognizes the three reference forms (object, receiving, digest) and
// delegates everything else to the base value grammar.
type Parser struct {
	src  string
	toks []Token
	pos  int
}

// NewParser wraps an already-lexed token stream. src is kept only for
// error messages and may be empty.
func NewParser(src string, toks []Token) *Parser {
	return &Parser{src: src, toks: toks}
}

// ParseLiteral lexes and parses a single value literal, requiring the whole
// input to be consumed.
func ParseLiteral(src string) (Value, error) {
	toks, err := Lex(src)
	if err != nil {
		return nil, err
	}
	p := NewParser(src, toks)
	v, err := p.ParseValue()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokEOF {
		return nil, newParseError(ErrCodeUnexpectedToken, src,
			fmt.Sprintf("trailing input at %s", p.peek().Kind))
	}
	return v, nil
}

func (p *Parser) peek() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) next() Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind TokenKind) (Token, error) {
	t := p.next()
	if t.Kind != kind {
		return t, newParseError(ErrCodeUnexpectedToken, p.src,
			fmt.Sprintf("expected %s, found %s", kind, t.Kind))
	}
	return t, nil
}

// ParseValue parses one symbolic value from the stream.
func (p *Parser) ParseValue() (Value, error) {
	t := p.peek()
	switch t.Kind {
	case TokIdent:
		switch t.Text {
		case "object":
			handle, version, err := p.parseReference("object")
			if err != nil {
				return nil, err
			}
			return ObjectRefValue{Handle: handle, Version: version}, nil
		case "receiving":
			handle, version, err := p.parseReference("receiving")
			if err != nil {
				return nil, err
			}
			return ReceivingValue{Handle: handle, Version: version}, nil
		case "digest":
			return p.parseDigest()
		case "true":
			p.next()
			return Plain{Value: BoolValue(true)}, nil
		case "false":
			p.next()
			return Plain{Value: BoolValue(false)}, nil
		case "vector":
			p.next()
			if p.peek().Kind != TokLBracket {
				return nil, newParseError(ErrCodeUnexpectedToken, p.src,
					"expected '[' after vector")
			}
			return p.parseVector()
		default:
			return nil, newParseError(ErrCodeUnexpectedToken, p.src,
				fmt.Sprintf("unknown identifier %q", t.Text))
		}
	case TokNumber:
		p.next()
		n, err := parseNumber(t, p.src)
		if err != nil {
			return nil, err
		}
		return Plain{Value: n}, nil
	case TokAt:
		p.next()
		num, err := p.expect(TokNumber)
		if err != nil {
			return nil, err
		}
		u, err := parseU256(num, p.src)
		if err != nil {
			return nil, err
		}
		return Plain{Value: AddressValue(addressFromU256(u))}, nil
	case TokString:
		p.next()
		return Plain{Value: BytesValue([]byte(t.Text))}, nil
	case TokHex:
		p.next()
		return Plain{Value: BytesValue(decodeHexToken(t.Text))}, nil
	case TokLBracket:
		return p.parseVector()
	case TokLBrace:
		return p.parseStruct()
	default:
		return nil, newParseError(ErrCodeUnexpectedToken, p.src,
			fmt.Sprintf("expected a value, found %s", t.Kind))
	}
}

// parseReference parses the shared body of object(...) and receiving(...):
// the handle, its dual encoding, and an optional @version pin.
//
// A bare 256-bit literal is a known handle: its little-endian encoding is
// reversed to big-endian address bytes. A trailing comma switches to the
// enumerated form (i, j), where i must fit 64 bits. The comma is the sole
// disambiguator; scripts rely on a single literal syntax naming both.
func (p *Parser) parseReference(ident string) (Handle, *chain.Version, error) {
	if _, err := p.expect(TokIdent); err != nil {
		return Handle{}, nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return Handle{}, nil, err
	}
	iTok, err := p.expect(TokNumber)
	if err != nil {
		return Handle{}, nil, err
	}
	i, err := parseU256(iTok, p.src)
	if err != nil {
		return Handle{}, nil, err
	}

	var handle Handle
	if p.peek().Kind == TokComma {
		p.next()
		jTok, err := p.expect(TokNumber)
		if err != nil {
			return Handle{}, nil, err
		}
		j, err := parseU64(jTok, p.src)
		if err != nil {
			return Handle{}, nil, err
		}
		if !i.IsUint64() {
			return Handle{}, nil, newParseError(ErrCodeHandleTooLarge, p.src,
				fmt.Sprintf("object ID too large in %s(...)", ident))
		}
		handle = EnumeratedHandle(i.Uint64(), j)
	} else {
		handle = KnownHandle(addressFromU256(i))
	}

	if _, err := p.expect(TokRParen); err != nil {
		return Handle{}, nil, err
	}

	var version *chain.Version
	if p.peek().Kind == TokAt {
		p.next()
		vTok, err := p.expect(TokNumber)
		if err != nil {
			return Handle{}, nil, err
		}
		v, err := parseU64(vTok, p.src)
		if err != nil {
			return Handle{}, nil, err
		}
		sv := chain.Version(v)
		version = &sv
	}
	return handle, version, nil
}

func (p *Parser) parseDigest() (Value, error) {
	if _, err := p.expect(TokIdent); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen); err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen); err != nil {
		return nil, err
	}
	return DigestValue{Name: name.Text}, nil
}

// parseVector parses a bracketed element list. A vector whose first parsed
// element is an object reference is reinterpreted wholesale as an object
// vector; every further element must then be an object reference too.
func (p *Parser) parseVector() (Value, error) {
	if _, err := p.expect(TokLBracket); err != nil {
		return nil, err
	}
	elems, err := p.parseElems(TokRBracket)
	if err != nil {
		return nil, err
	}
	if len(elems) > 0 {
		if _, isRef := elems[0].(ObjectRefValue); isRef {
			refs := make([]ObjectRefValue, len(elems))
			for i, e := range elems {
				r, err := asObjectRef(e)
				if err != nil {
					return nil, err
				}
				refs[i] = r
			}
			return ObjectVecValue{Elems: refs}, nil
		}
	}
	plain := make(VectorValue, len(elems))
	for i, e := range elems {
		pv, err := asPlain(e)
		if err != nil {
			return nil, err
		}
		plain[i] = pv
	}
	return Plain{Value: plain}, nil
}

// parseStruct parses a braced positional struct. Object references may not
// nest inside plain composites; asPlain rejects them.
func (p *Parser) parseStruct() (Value, error) {
	if _, err := p.expect(TokLBrace); err != nil {
		return nil, err
	}
	elems, err := p.parseElems(TokRBrace)
	if err != nil {
		return nil, err
	}
	fields := make(StructValue, len(elems))
	for i, e := range elems {
		pv, err := asPlain(e)
		if err != nil {
			return nil, err
		}
		fields[i] = pv
	}
	return Plain{Value: fields}, nil
}

func (p *Parser) parseElems(closing TokenKind) ([]Value, error) {
	var elems []Value
	for {
		if p.peek().Kind == closing {
			p.next()
			return elems, nil
		}
		if len(elems) > 0 {
			if _, err := p.expect(TokComma); err != nil {
				return nil, err
			}
			// trailing comma before the closer is accepted
			if p.peek().Kind == closing {
				p.next()
				return elems, nil
			}
		}
		v, err := p.ParseValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
}

func parseU256(t Token, src string) (*uint256.Int, error) {
	if t.Suffix != "" && t.Suffix != "u256" && t.Suffix != "u64" {
		return nil, newParseError(ErrCodeBadLiteral, src,
			fmt.Sprintf("unexpected width suffix %q on handle literal", t.Suffix))
	}
	u, err := uint256FromText(t.Text)
	if err != nil {
		return nil, newParseError(ErrCodeBadLiteral, src, err.Error())
	}
	return u, nil
}

func parseU64(t Token, src string) (uint64, error) {
	if t.Suffix != "" && t.Suffix != "u64" {
		return 0, newParseError(ErrCodeBadLiteral, src,
			fmt.Sprintf("unexpected width suffix %q on 64-bit literal", t.Suffix))
	}
	u, err := uint256FromText(t.Text)
	if err != nil {
		return 0, newParseError(ErrCodeBadLiteral, src, err.Error())
	}
	if !u.IsUint64() {
		return 0, newParseError(ErrCodeBadLiteral, src,
			fmt.Sprintf("literal %s does not fit 64 bits", t.Text))
	}
	return u.Uint64(), nil
}

// parseNumber parses a plain numeric literal, honoring its width suffix.
// Unsuffixed literals default to u64.
func parseNumber(t Token, src string) (PlainValue, error) {
	bits := 64
	switch t.Suffix {
	case "":
		bits = 64
	case "u8":
		bits = 8
	case "u16":
		bits = 16
	case "u32":
		bits = 32
	case "u64":
		bits = 64
	case "u128":
		bits = 128
	case "u256":
		bits = 256
	}
	u, err := uint256FromText(t.Text)
	if err != nil {
		return nil, newParseError(ErrCodeBadLiteral, src, err.Error())
	}
	if u.BitLen() > bits {
		return nil, newParseError(ErrCodeBadLiteral, src,
			fmt.Sprintf("literal %s does not fit u%d", t.Text, bits))
	}
	return NumberValue{Bits: bits, Val: u}, nil
}

func uint256FromText(text string) (*uint256.Int, error) {
	if len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X") {
		digits := strings.TrimLeft(text[2:], "0")
		if digits == "" {
			return uint256.NewInt(0), nil
		}
		u, err := uint256.FromHex("0x" + digits)
		if err != nil {
			return nil, fmt.Errorf("invalid hex literal %s: %w", text, err)
		}
		return u, nil
	}
	u, err := uint256.FromDecimal(text)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal literal %s: %w", text, err)
	}
	return u, nil
}

// ParseHandle parses a bare handle outside the value grammar, as script
// verbs write them: "I,J" for an enumerated handle, a lone 256-bit literal
// for a known one. The same dual encoding as inside object(...).
func ParseHandle(s string) (Handle, error) {
	if before, after, found := strings.Cut(s, ","); found {
		iTok := Token{Kind: TokNumber, Text: strings.TrimSpace(before)}
		jTok := Token{Kind: TokNumber, Text: strings.TrimSpace(after)}
		i, err := parseU64(iTok, s)
		if err != nil {
			return Handle{}, err
		}
		j, err := parseU64(jTok, s)
		if err != nil {
			return Handle{}, err
		}
		return EnumeratedHandle(i, j), nil
	}
	u, err := parseU256(Token{Kind: TokNumber, Text: strings.TrimSpace(s)}, s)
	if err != nil {
		return Handle{}, err
	}
	return KnownHandle(addressFromU256(u)), nil
}

// addressFromU256 reinterprets a 256-bit literal as raw address bytes: the
// little-endian value reversed into big-endian byte order.
func addressFromU256(u *uint256.Int) chain.Address {
	return chain.Address(u.Bytes32())
}

func decodeHexToken(body string) []byte {
	out := make([]byte, len(body)/2)
	for i := 0; i < len(out); i++ {
		out[i] = hexNibble(body[2*i])<<4 | hexNibble(body[2*i+1])
	}
	return out
}

// hexNibble assumes the lexer already validated the digit.
func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
