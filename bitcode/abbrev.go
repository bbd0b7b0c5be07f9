package bitcode

import (
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// char6Alphabet is the fixed 64-character alphabet Char6 operands decode
// through.
const char6Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789._"

// AbbrevOpKind tags the operand-spec variants an Abbrev is built from.
type AbbrevOpKind int

const (
	OpLiteral AbbrevOpKind = iota
	OpFixed
	OpVBR
	OpArray
	OpChar6
	OpBlob
)

// AbbrevOp is one operand spec within an Abbrev.
type AbbrevOp struct {
	Kind    AbbrevOpKind
	Literal uint64    // valid when Kind == OpLiteral
	Width   uint64    // valid when Kind == OpFixed or OpVBR
	Elem    *AbbrevOp // valid when Kind == OpArray
}

// abbrevOpEncoding mirrors the three-bit operand-encoding tag that
// precedes every non-literal operand.
type abbrevOpEncoding uint64

const (
	encodingFixed abbrevOpEncoding = 1
	encodingVBR   abbrevOpEncoding = 2
	encodingArray abbrevOpEncoding = 3
	encodingChar6 abbrevOpEncoding = 4
	encodingBlob  abbrevOpEncoding = 5
)

func abbrevOpEncodingFromU64(v uint64) (abbrevOpEncoding, error) {
	switch abbrevOpEncoding(v) {
	case encodingFixed, encodingVBR, encodingArray, encodingChar6, encodingBlob:
		return abbrevOpEncoding(v), nil
	default:
		return 0, fmt.Errorf("%w: unknown abbrev operand encoding %d", diag.ErrMalformedStream, v)
	}
}

// Abbrev is an ordered list of operand specs, a record template that
// compresses a common record shape into a fixed bit layout.
type Abbrev struct {
	Operands []AbbrevOp
}

// NewAbbrev parses one DEFINE_ABBREV body from the cursor.
func NewAbbrev(c *Cursor) (*Abbrev, error) {
	numOperands, err := c.ReadVBR(5)
	if err != nil {
		return nil, err
	}
	if numOperands < 1 {
		return nil, fmt.Errorf("%w: abbrev with zero operands", diag.ErrMalformedStream)
	}

	var operands []AbbrevOp
	doneEarly := false

	for idx := uint64(0); idx < numOperands; idx++ {
		isLiteral, err := c.Read(1)
		if err != nil {
			return nil, err
		}

		if isLiteral == 1 {
			value, err := c.ReadVBR(8)
			if err != nil {
				return nil, err
			}
			operands = append(operands, AbbrevOp{Kind: OpLiteral, Literal: value})
			continue
		}

		encBits, err := c.Read(3)
		if err != nil {
			return nil, err
		}
		encoding, err := abbrevOpEncodingFromU64(encBits)
		if err != nil {
			return nil, err
		}

		var operand AbbrevOp
		switch encoding {
		case encodingFixed:
			width, err := c.ReadVBR(5)
			if err != nil {
				return nil, err
			}
			operand = AbbrevOp{Kind: OpFixed, Width: width}
		case encodingVBR:
			width, err := c.ReadVBR(5)
			if err != nil {
				return nil, err
			}
			operand = AbbrevOp{Kind: OpVBR, Width: width}
		case encodingArray:
			if idx != numOperands-2 {
				return nil, fmt.Errorf("%w: Array operand at invalid index", diag.ErrMalformedStream)
			}
			if _, err := c.Read(1); err != nil {
				return nil, err
			}
			elemEncBits, err := c.Read(3)
			if err != nil {
				return nil, err
			}
			elemEncoding, err := abbrevOpEncodingFromU64(elemEncBits)
			if err != nil {
				return nil, err
			}
			doneEarly = true

			var elem AbbrevOp
			switch elemEncoding {
			case encodingFixed:
				width, err := c.ReadVBR(5)
				if err != nil {
					return nil, err
				}
				elem = AbbrevOp{Kind: OpFixed, Width: width}
			case encodingVBR:
				width, err := c.ReadVBR(5)
				if err != nil {
					return nil, err
				}
				elem = AbbrevOp{Kind: OpVBR, Width: width}
			case encodingChar6:
				elem = AbbrevOp{Kind: OpChar6}
			default:
				return nil, fmt.Errorf("%w: blobs and arrays cannot themselves be member types", diag.ErrMalformedStream)
			}

			operand = AbbrevOp{Kind: OpArray, Elem: &elem}
		case encodingChar6:
			operand = AbbrevOp{Kind: OpChar6}
		case encodingBlob:
			if idx != numOperands-1 {
				return nil, fmt.Errorf("%w: Blob operand at invalid index", diag.ErrMalformedStream)
			}
			operand = AbbrevOp{Kind: OpBlob}
		}

		operands = append(operands, operand)

		if doneEarly {
			break
		}
	}

	return &Abbrev{Operands: operands}, nil
}

// Parse applies each operand spec in order against the cursor,
// producing the record's flat field list.
func (a *Abbrev) Parse(c *Cursor) (Fields, error) {
	var fields Fields
	for _, op := range a.Operands {
		vals, err := op.parse(c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, vals...)
	}
	return fields, nil
}

func (op *AbbrevOp) parse(c *Cursor) (Fields, error) {
	switch op.Kind {
	case OpLiteral:
		return Fields{op.Literal}, nil
	case OpVBR:
		v, err := c.ReadVBR(int(op.Width))
		if err != nil {
			return nil, err
		}
		return Fields{v}, nil
	case OpFixed:
		v, err := c.Read(int(op.Width))
		if err != nil {
			return nil, err
		}
		return Fields{v}, nil
	case OpArray:
		length, err := c.ReadVBR(6)
		if err != nil {
			return nil, err
		}
		fields := make(Fields, 0, length)
		for i := uint64(0); i < length; i++ {
			vals, err := op.Elem.parse(c)
			if err != nil {
				return nil, err
			}
			fields = append(fields, vals...)
		}
		return fields, nil
	case OpChar6:
		v, err := c.Read(6)
		if err != nil {
			return nil, err
		}
		return Fields{uint64(decodeChar6(v))}, nil
	case OpBlob:
		length, err := c.ReadVBR(6)
		if err != nil {
			return nil, err
		}
		c.Align32()

		fields := make(Fields, 0, length)
		for i := uint64(0); i < length; i++ {
			v, err := c.Read(8)
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}
		c.Align32()
		return fields, nil
	default:
		return nil, fmt.Errorf("%w: unknown abbrev operand kind", diag.ErrMalformedStream)
	}
}

func decodeChar6(v uint64) byte {
	return char6Alphabet[v]
}
