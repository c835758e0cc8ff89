package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes (and so every cached artifact).
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Command tags. Each tag uniquely identifies an op kind in the serialized
// byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Counted ops: tag + uint32 run length
	TagIncr  byte = 0x01
	TagDecr  byte = 0x02
	TagRight byte = 0x03
	TagLeft  byte = 0x04

	// Single ops
	TagOutput byte = 0x10
	TagInput  byte = 0x11
	TagOpen   byte = 0x12
	TagClose  byte = 0x13

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIncr, TagDecr, TagRight, TagLeft,
	TagOutput, TagInput, TagOpen, TagClose,
}
