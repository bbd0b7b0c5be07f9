package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// Identification is the decoded IDENTIFICATION_BLOCK: the producer
// string and its epoch fields.
type Identification struct {
	Producer string
	Epoch    bitcode.Fields
}

func decodeIdentificationBlock(s *bitcode.Stream) (Identification, error) {
	var id Identification

	for {
		entry, err := s.Advance()
		if err != nil {
			return id, fmt.Errorf("decoding identification block: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return id, nil
		case bitcode.EntrySubBlock:
			return id, fmt.Errorf("%w: unexpected sub-block inside IDENTIFICATION_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			switch bitcode.IdentificationCode(record.Code) {
			case bitcode.IdentificationString:
				id.Producer = fieldsToString(record.Fields)
			case bitcode.IdentificationEpoch:
				id.Epoch = record.Fields
			default:
				return id, fmt.Errorf("%w: unknown IDENTIFICATION_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}
		}
	}
}
