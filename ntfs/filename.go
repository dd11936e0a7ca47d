package ntfs

// Namespace values of $FILE_NAME's Namespace field.
const (
	NamespacePOSIX      uint8 = 0
	NamespaceWin32      uint8 = 1
	NamespaceDOS        uint8 = 2
	NamespaceWin32AndDOS uint8 = 3
)

// FileName is the decoded $FILE_NAME content.
type FileName struct {
	ParentReference FileReference
	Created         uint64
	Modified        uint64
	MFTModified     uint64
	Accessed        uint64
	AllocatedSize   uint64
	RealSize        uint64
	Flags           uint32
	Namespace       uint8
	Name            string
}

func ParseFileName(content []byte) (*FileName, error) {
	if len(content) < 0x42 {
		return nil, ErrTruncated
	}

	parentRef, _ := readUint64(content, 0x00)
	created, _ := readUint64(content, 0x08)
	modified, _ := readUint64(content, 0x10)
	mftModified, _ := readUint64(content, 0x18)
	accessed, _ := readUint64(content, 0x20)
	allocatedSize, _ := readUint64(content, 0x28)
	realSize, _ := readUint64(content, 0x30)
	flags, _ := readUint32(content, 0x38)
	nameLength := content[0x40]
	namespace := content[0x41]

	nameStart := 0x42
	nameEnd := nameStart + int(nameLength)*2
	if nameEnd > len(content) {
		return nil, ErrMalformed
	}

	return &FileName{
		ParentReference: FileReference(parentRef),
		Created:         created,
		Modified:        modified,
		MFTModified:     mftModified,
		Accessed:        accessed,
		AllocatedSize:   allocatedSize,
		RealSize:        realSize,
		Flags:           flags,
		Namespace:       namespace,
		Name:            ParseUTF16String(content[nameStart:nameEnd]),
	}, nil
}

// namespaceRank orders namespaces by preference for display: Win32+DOS
// and Win32 win over plain DOS or POSIX, since a short 8.3 DOS alias is
// rarely the name a user recognizes.
func namespaceRank(ns uint8) int {
	switch ns {
	case NamespaceWin32, NamespaceWin32AndDOS:
		return 2
	case NamespacePOSIX:
		return 1
	default: // NamespaceDOS
		return 0
	}
}

// PreferredFileName picks the $FILE_NAME attribute to use when an MFT
// record carries more than one namespace variant.
func PreferredFileName(names []*FileName) *FileName {
	var best *FileName
	for _, n := range names {
		if best == nil || namespaceRank(n.Namespace) > namespaceRank(best.Namespace) {
			best = n
		}
	}
	return best
}
