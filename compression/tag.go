package compression

import "fmt"

// Tag is the two byte codec identifier at the start of every compressed block
type Tag string

const (
	TagZlib Tag = "ZL"
	TagLZMA Tag = "XZ"
	// TagOld is the original ROOT algorithm, never implemented here
	TagOld  Tag = "CS"
	TagLZ4  Tag = "L4"
	TagZstd Tag = "ZS"
)

// Algorithm is the compression setting of a file header divided by 100
type Algorithm int32

const (
	AlgorithmGlobal Algorithm = iota
	AlgorithmZlib
	AlgorithmLZMA
	AlgorithmOld
	AlgorithmLZ4
	AlgorithmZstd
)

var algorithmTags = map[Algorithm]Tag{
	AlgorithmZlib: TagZlib,
	AlgorithmLZMA: TagLZMA,
	AlgorithmOld:  TagOld,
	AlgorithmLZ4:  TagLZ4,
	AlgorithmZstd: TagZstd,
}

// Tag returns the block tag written by files using this algorithm. The
// global setting means zlib, as it does for ROOT itself.
func (a Algorithm) Tag() (Tag, error) {
	if a == AlgorithmGlobal {
		return TagZlib, nil
	}
	tag, ok := algorithmTags[a]
	if !ok {
		return "", fmt.Errorf("%w: algorithm %d", ErrUnsupportedAlgorithm, a)
	}
	return tag, nil
}

func (t Tag) String() string { return string(t) }
