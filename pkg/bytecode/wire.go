package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes. The decoded chunk
// is version-checked and validated before it is returned, so a chunk from
// the wire is as trustworthy as a freshly compiled one.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if c.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: chunk version %d is newer than supported version %d", c.Version, BytecodeVersion)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshaled chunk invalid: %w", err)
	}
	return &c, nil
}

// MarshalValue serializes a single value to CBOR bytes, for persistence.
func MarshalValue(v Value) ([]byte, error) {
	return cborEncMode.Marshal(v)
}

// UnmarshalValue deserializes a value from CBOR bytes.
func UnmarshalValue(data []byte) (Value, error) {
	var v Value
	if err := cbor.Unmarshal(data, &v); err != nil {
		return Null(), fmt.Errorf("bytecode: unmarshal value: %w", err)
	}
	return v, nil
}
