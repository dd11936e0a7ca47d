package ntfs

// StandardInformation is the decoded $STANDARD_INFORMATION content:
// timestamps and file attribute bits every MFT record carries.
type StandardInformation struct {
	Created        uint64
	Modified       uint64
	MFTModified    uint64
	Accessed       uint64
	FileAttributes uint32
}

func ParseStandardInformation(content []byte) (*StandardInformation, error) {
	if len(content) < 0x24 {
		return nil, ErrTruncated
	}

	created, _ := readUint64(content, 0x00)
	modified, _ := readUint64(content, 0x08)
	mftModified, _ := readUint64(content, 0x10)
	accessed, _ := readUint64(content, 0x18)
	attrs, _ := readUint32(content, 0x20)

	return &StandardInformation{
		Created:        created,
		Modified:       modified,
		MFTModified:    mftModified,
		Accessed:       accessed,
		FileAttributes: attrs,
	}, nil
}
