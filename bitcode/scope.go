package bitcode

import (
	"fmt"

	"github.com/gogpu/airlines/internal/diag"
)

// initialAbbrevIDWidth is the abbreviation-id width at the top level,
// before any block has been entered.
const initialAbbrevIDWidth = 2

// scope tracks the abbreviation-id width, registered abbreviations, and
// BLOCKINFO configuration state for one nested block (or the implicit
// top-level scope).
type scope struct {
	isTop bool

	abbrevIDWidth    uint64
	blockID          uint64
	blockInfoBlockID *uint64
	abbrevs          []*Abbrev
}

func newTopScope() *scope {
	return &scope{isTop: true, abbrevIDWidth: initialAbbrevIDWidth}
}

func newBlockScope(abbrevIDWidth, blockID uint64) *scope {
	return &scope{abbrevIDWidth: abbrevIDWidth, blockID: blockID}
}

func (s *scope) isBlockInfo() bool {
	return !s.isTop && s.blockID == uint64(BlockInfoID)
}

func (s *scope) setBlockInfoBlockID(id uint64) error {
	if s.isTop {
		return fmt.Errorf("%w: cannot SETBID on a non-block scope", diag.ErrMalformedStream)
	}
	s.blockInfoBlockID = &id
	return nil
}

func (s *scope) getAbbrev(abbrevID uint64) (*Abbrev, error) {
	if s.isTop {
		return nil, fmt.Errorf("%w: non-block scope cannot contain records", diag.ErrMalformedStream)
	}
	idx := abbrevID - FirstApplicationAbbrevID
	if idx >= uint64(len(s.abbrevs)) {
		return nil, fmt.Errorf("%w: bad abbrev id %d", diag.ErrMalformedStream, abbrevID)
	}
	return s.abbrevs[idx], nil
}

func (s *scope) extendAbbrevs(newAbbrevs []*Abbrev) error {
	if s.isTop {
		return fmt.Errorf("%w: non-block scope cannot reference abbreviations", diag.ErrMalformedStream)
	}
	s.abbrevs = append(s.abbrevs, newAbbrevs...)
	return nil
}
