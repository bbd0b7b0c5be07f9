package bitcode

// Fields is the flat list of values a record or abbreviation operand
// produces.
type Fields []uint64

// Reserved abbreviation ids. Application-defined abbreviations start at
// FirstApplicationAbbrevID.
type ReservedAbbrevID uint64

const (
	EndBlock       ReservedAbbrevID = 0
	EnterSubblock  ReservedAbbrevID = 1
	DefineAbbrev   ReservedAbbrevID = 2
	UnabbrevRecord ReservedAbbrevID = 3
)

// FirstApplicationAbbrevID is the first non-reserved abbreviation id.
const FirstApplicationAbbrevID = 4

// ReservedBlockID enumerates the always-present block ids.
type ReservedBlockID uint64

const (
	BlockInfoID ReservedBlockID = 0
)

// BlockID enumerates the AIR/LLVM module-level block ids this decoder
// dispatches on.
type BlockID uint64

const (
	BlockModule          BlockID = 8
	BlockParamAttr       BlockID = 9
	BlockParamAttrGroup  BlockID = 10
	BlockConstants       BlockID = 11
	BlockFunction        BlockID = 12
	BlockIdentification  BlockID = 13
	BlockValueSymtab     BlockID = 14
	BlockMetadata        BlockID = 15
	BlockMetadataAttach  BlockID = 16
	BlockType            BlockID = 17
	BlockUselist         BlockID = 18
	BlockModuleStrtab    BlockID = 19
	BlockGlobalvalSymtab BlockID = 20
	BlockOperandBundle   BlockID = 21
	BlockMetadataKind    BlockID = 22
	BlockStrtab          BlockID = 23
	BlockFullLTOGlobal   BlockID = 24
	BlockSymtab          BlockID = 25
	BlockSyncScopeNames  BlockID = 26
)

// BlockInfoCode enumerates record codes valid only inside a BLOCKINFO
// block.
type BlockInfoCode uint64

const (
	BlockInfoSetBID        BlockInfoCode = 1
	BlockInfoBlockName     BlockInfoCode = 2
	BlockInfoSetRecordName BlockInfoCode = 3
)

// IdentificationCode enumerates IDENTIFICATION_BLOCK record codes.
type IdentificationCode uint64

const (
	IdentificationString IdentificationCode = 1
	IdentificationEpoch  IdentificationCode = 2
)

// ModuleCode enumerates MODULE_BLOCK record codes this decoder handles.
type ModuleCode uint64

const (
	ModuleVersion        ModuleCode = 1
	ModuleTriple         ModuleCode = 2
	ModuleDataLayout     ModuleCode = 3
	ModuleGlobalVar      ModuleCode = 7
	ModuleFunction       ModuleCode = 8
	ModuleVSTOffset      ModuleCode = 13
	ModuleSourceFilename ModuleCode = 16
)

// TypeCode enumerates TYPE_BLOCK record codes.
type TypeCode uint64

const (
	TypeNumEntry    TypeCode = 1
	TypeVoid        TypeCode = 2
	TypeFloat       TypeCode = 3
	TypeInteger     TypeCode = 7
	TypePointer     TypeCode = 8
	TypeFunctionOld TypeCode = 9
	TypeStructAnon  TypeCode = 18
	TypeStructName  TypeCode = 19
	TypeStructNamed TypeCode = 20
	TypeFunction    TypeCode = 21
	TypeVector      TypeCode = 22
	TypeMetadata    TypeCode = 16
	TypeArray       TypeCode = 11
)

// AttributeKindCode enumerates well-known attribute kinds. Only the
// subset actually produced by Apple's shader compiler is named; unknown
// kinds still round-trip as their raw numeric value.
type AttributeKindCode uint64

const (
	AttrKindAlignment AttributeKindCode = 1
	AttrKindNoInline  AttributeKindCode = 17
	AttrKindReadNone  AttributeKindCode = 20
	AttrKindReadOnly  AttributeKindCode = 21
)

// AttributeCode enumerates PARAMATTR/PARAMATTR_GROUP record codes.
type AttributeCode uint64

const (
	AttributeEntry        AttributeCode = 1
	AttributeGrpCodeEntry AttributeCode = 3
)

// ConstantsCode enumerates CONSTANTS_BLOCK record codes.
type ConstantsCode uint64

const (
	ConstantSetType   ConstantsCode = 1
	ConstantNull      ConstantsCode = 2
	ConstantUndef     ConstantsCode = 3
	ConstantInteger   ConstantsCode = 4
	ConstantAggregate ConstantsCode = 7
	ConstantData      ConstantsCode = 22
	ConstantFloat     ConstantsCode = 6
	ConstantPoison    ConstantsCode = 26
)

// MetadataCodes enumerates METADATA_BLOCK record codes.
type MetadataCodes uint64

const (
	MetadataStringOld   MetadataCodes = 1
	MetadataValue       MetadataCodes = 2
	MetadataNode        MetadataCodes = 3
	MetadataName        MetadataCodes = 4
	MetadataNamedNode   MetadataCodes = 10
	MetadataKind        MetadataCodes = 6
	MetadataIndexOffset MetadataCodes = 38
	MetadataIndex       MetadataCodes = 39
	MetadataStrings     MetadataCodes = 35
)

// FunctionCodes enumerates FUNCTION_BLOCK record codes.
type FunctionCodes uint64

const (
	FuncDeclareBlocks FunctionCodes = 1
	FuncInstRet       FunctionCodes = 10
	FuncInstBr        FunctionCodes = 11
	FuncInstCast      FunctionCodes = 3
	FuncInstGEP       FunctionCodes = 43
	FuncInstCall      FunctionCodes = 34
	FuncInstCmp2      FunctionCodes = 28
	FuncInstBinop     FunctionCodes = 2
)

// CastOpCode enumerates INST_CAST opcode values.
type CastOpCode uint64

const (
	CastTrunc         CastOpCode = 0
	CastZExt          CastOpCode = 1
	CastSExt          CastOpCode = 2
	CastFPToUI        CastOpCode = 3
	CastFPToSI        CastOpCode = 4
	CastUIToFP        CastOpCode = 5
	CastSIToFP        CastOpCode = 6
	CastFPTrunc       CastOpCode = 7
	CastFPExt         CastOpCode = 8
	CastPtrToInt      CastOpCode = 9
	CastIntToPtr      CastOpCode = 10
	CastBitcast       CastOpCode = 11
	CastAddrSpaceCast CastOpCode = 12
)

// BinOpCode enumerates INST_BINOP opcode values this decoder maps onto
// SPIR-V arithmetic/comparison opcodes.
type BinOpCode uint64

const (
	BinOpAdd  BinOpCode = 0
	BinOpSub  BinOpCode = 1
	BinOpMul  BinOpCode = 2
	BinOpUDiv BinOpCode = 3
	BinOpSDiv BinOpCode = 4
	BinOpURem BinOpCode = 5
	BinOpSRem BinOpCode = 6
	BinOpShl  BinOpCode = 7
	BinOpLShr BinOpCode = 8
	BinOpAShr BinOpCode = 9
	BinOpAnd  BinOpCode = 10
	BinOpOr   BinOpCode = 11
	BinOpXor  BinOpCode = 12
)

// CmpPredicate enumerates the LLVM FCmp/ICmp predicate values carried
// as the last operand of an INST_CMP2 record. Float and integer
// predicates share one numeric space in the bitcode encoding; which
// table applies is determined by the operand type, not the predicate
// value itself.
type CmpPredicate uint64

const (
	FCmpFalse CmpPredicate = 0
	FCmpOEQ   CmpPredicate = 1
	FCmpOGT   CmpPredicate = 2
	FCmpOGE   CmpPredicate = 3
	FCmpOLT   CmpPredicate = 4
	FCmpOLE   CmpPredicate = 5
	FCmpONE   CmpPredicate = 6
	FCmpORD   CmpPredicate = 7
	FCmpUNO   CmpPredicate = 8
	FCmpUEQ   CmpPredicate = 9
	FCmpUGT   CmpPredicate = 10
	FCmpUGE   CmpPredicate = 11
	FCmpULT   CmpPredicate = 12
	FCmpULE   CmpPredicate = 13
	FCmpUNE   CmpPredicate = 14
	FCmpTrue  CmpPredicate = 15

	ICmpEQ  CmpPredicate = 32
	ICmpNE  CmpPredicate = 33
	ICmpUGT CmpPredicate = 34
	ICmpUGE CmpPredicate = 35
	ICmpULT CmpPredicate = 36
	ICmpULE CmpPredicate = 37
	ICmpSGT CmpPredicate = 38
	ICmpSGE CmpPredicate = 39
	ICmpSLT CmpPredicate = 40
	ICmpSLE CmpPredicate = 41
)
