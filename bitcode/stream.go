package bitcode

import (
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// Stream drives the cursor through nested blocks and records, handling
// abbreviation definitions, BLOCKINFO registration, and the reserved
// abbreviation ids. It is the direct analogue of LLVM's BitstreamCursor
// plus BitstreamReader's BLOCKINFO handling.
type Stream struct {
	cursor    *Cursor
	scopes    []*scope
	blockInfo map[uint64][]*Abbrev
}

// NewStream wraps a Cursor for block/record-level parsing.
func NewStream(c *Cursor) *Stream {
	return &Stream{
		cursor:    c,
		scopes:    []*scope{newTopScope()},
		blockInfo: make(map[uint64][]*Abbrev),
	}
}

func (s *Stream) top() *scope { return s.scopes[len(s.scopes)-1] }

// Advance parses the next stream entry, following the suppress-and-
// recurse control flow LLVM's reader uses: DEFINE_ABBREV, a suppressed
// END_BLOCK/ENTER_SUBBLOCK/UNABBREV_RECORD inside BLOCKINFO, and a
// suppressed abbreviated record inside BLOCKINFO all recurse into the
// next real entry rather than returning a synthetic one.
func (s *Stream) Advance() (StreamEntry, error) {
	if s.cursor.Exhausted() {
		return StreamEntry{Kind: EntryEndOfStream}, nil
	}

	idWidth := int(s.top().abbrevIDWidth)
	id, err := s.cursor.Read(idWidth)
	if err != nil {
		return StreamEntry{}, err
	}

	switch ReservedAbbrevID(id) {
	case EndBlock:
		entry, handled, err := s.exitBlock()
		if err != nil {
			return StreamEntry{}, err
		}
		if handled {
			return entry, nil
		}
		return s.Advance()
	case EnterSubblock:
		entry, handled, err := s.enterBlock()
		if err != nil {
			return StreamEntry{}, err
		}
		if handled {
			return entry, nil
		}
		return s.Advance()
	case DefineAbbrev:
		if err := s.defineAbbrev(); err != nil {
			return StreamEntry{}, err
		}
		return s.Advance()
	case UnabbrevRecord:
		entry, handled, err := s.parseUnabbrev()
		if err != nil {
			return StreamEntry{}, err
		}
		if handled {
			return entry, nil
		}
		return s.Advance()
	default:
		entry, handled, err := s.parseWithAbbrev(id)
		if err != nil {
			return StreamEntry{}, err
		}
		if handled {
			return entry, nil
		}
		return s.Advance()
	}
}

func (s *Stream) parseWithAbbrev(abbrevID uint64) (StreamEntry, bool, error) {
	abbrev, err := s.top().getAbbrev(abbrevID)
	if err != nil {
		return StreamEntry{}, false, err
	}

	fields, err := abbrev.Parse(s.cursor)
	if err != nil {
		return StreamEntry{}, false, err
	}
	if len(fields) == 0 {
		return StreamEntry{}, false, fmt.Errorf("%w: abbreviated record produced no fields", diag.ErrMalformedStream)
	}

	code := fields[0]
	rest := fields[1:]

	if s.top().isBlockInfo() {
		return StreamEntry{}, false, nil
	}

	return StreamEntry{Kind: EntryRecord, Record: Record{AbbrevID: &abbrevID, Code: code, Fields: rest}}, true, nil
}

func (s *Stream) parseUnabbrev() (StreamEntry, bool, error) {
	if s.top().isTop {
		return StreamEntry{}, false, fmt.Errorf("%w: UNABBREV_RECORD outside of any block scope", diag.ErrMalformedStream)
	}

	code, err := s.cursor.ReadVBR(6)
	if err != nil {
		return StreamEntry{}, false, err
	}
	numOperands, err := s.cursor.ReadVBR(6)
	if err != nil {
		return StreamEntry{}, false, err
	}

	fields := make(Fields, 0, numOperands)
	for i := uint64(0); i < numOperands; i++ {
		v, err := s.cursor.ReadVBR(6)
		if err != nil {
			return StreamEntry{}, false, err
		}
		fields = append(fields, v)
	}

	record := recordFromUnabbrev(code, fields)

	if s.top().isBlockInfo() {
		switch BlockInfoCode(record.Code) {
		case BlockInfoSetBID:
			if len(record.Fields) == 0 {
				return StreamEntry{}, false, fmt.Errorf("%w: SETBID with no operand", diag.ErrMalformedStream)
			}
			if err := s.top().setBlockInfoBlockID(record.Fields[0]); err != nil {
				return StreamEntry{}, false, err
			}
		case BlockInfoBlockName, BlockInfoSetRecordName:
			// Name hints only; discarded.
		default:
			return StreamEntry{}, false, fmt.Errorf("%w: unknown BLOCKINFO code %d", diag.ErrMalformedStream, record.Code)
		}
		return StreamEntry{}, false, nil
	}

	return StreamEntry{Kind: EntryRecord, Record: record}, true, nil
}

func (s *Stream) defineAbbrev() error {
	abbrev, err := NewAbbrev(s.cursor)
	if err != nil {
		return err
	}

	if s.top().isBlockInfo() {
		if s.top().blockInfoBlockID == nil {
			return fmt.Errorf("%w: DEFINE_ABBREV in BLOCKINFO with no preceding SETBID", diag.ErrMalformedStream)
		}
		id := *s.top().blockInfoBlockID
		s.blockInfo[id] = append(s.blockInfo[id], abbrev)
		return nil
	}

	return s.top().extendAbbrevs([]*Abbrev{abbrev})
}

func (s *Stream) enterBlock() (StreamEntry, bool, error) {
	blockID, err := s.cursor.ReadVBR(8)
	if err != nil {
		return StreamEntry{}, false, err
	}
	newWidth, err := s.cursor.ReadVBR(4)
	if err != nil {
		return StreamEntry{}, false, err
	}

	s.cursor.Align32()

	if newWidth < 1 {
		return StreamEntry{}, false, fmt.Errorf("%w: invalid abbrev id width %d on block entry", diag.ErrMalformedStream, newWidth)
	}

	words, err := s.cursor.Read(32)
	if err != nil {
		return StreamEntry{}, false, err
	}
	lenBytes := words * 4

	newScope := newBlockScope(newWidth, blockID)
	s.scopes = append(s.scopes, newScope)

	if abbrevs, ok := s.blockInfo[blockID]; ok {
		if err := newScope.extendAbbrevs(abbrevs); err != nil {
			return StreamEntry{}, false, err
		}
	}

	if newScope.isBlockInfo() {
		return StreamEntry{}, false, nil
	}

	return StreamEntry{Kind: EntrySubBlock, Block: Block{BlockID: blockID, LenBytes: lenBytes}}, true, nil
}

func (s *Stream) exitBlock() (StreamEntry, bool, error) {
	s.cursor.Align32()

	if len(s.scopes) <= 1 {
		return StreamEntry{}, false, fmt.Errorf("%w: END_BLOCK with empty scope stack", diag.ErrMalformedStream)
	}

	popped := s.scopes[len(s.scopes)-1]
	s.scopes = s.scopes[:len(s.scopes)-1]

	if popped.isBlockInfo() {
		return StreamEntry{}, false, nil
	}

	return StreamEntry{Kind: EntryEndBlock}, true, nil
}
