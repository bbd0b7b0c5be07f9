package air

import (
	"fmt"

	"github.com/gogpu/airlines/bitcode"
	"github.com/gogpu/airlines/internal/diag"
)

// strtabBlob is the single well-known record code LLVM's STRTAB_BLOCK
// carries: one blob holding every global/function name, referenced
// elsewhere by (offset, size).
const strtabBlob = 1

// decodeStrtab decodes a STRTAB_BLOCK into its raw byte blob.
func decodeStrtab(s *bitcode.Stream) ([]byte, error) {
	var blob []byte

	for {
		entry, err := s.Advance()
		if err != nil {
			return nil, fmt.Errorf("decoding string table: %w", err)
		}
		switch entry.Kind {
		case bitcode.EntryEndBlock, bitcode.EntryEndOfStream:
			return blob, nil
		case bitcode.EntrySubBlock:
			return nil, fmt.Errorf("%w: unexpected sub-block inside STRTAB_BLOCK", diag.ErrMalformedStream)
		case bitcode.EntryRecord:
			record := entry.Record
			if record.Code != strtabBlob {
				return nil, fmt.Errorf("%w: unexpected STRTAB_BLOCK record code %d", diag.ErrSemanticMismatch, record.Code)
			}
			blob = make([]byte, len(record.Fields))
			for i, f := range record.Fields {
				blob[i] = byte(f)
			}
		}
	}
}
