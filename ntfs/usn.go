package ntfs

import "fmt"

// USN reason bits, the well-known FSCTL_*USN_JOURNAL* reason mask.
const (
	UsnReasonDataOverwrite      uint32 = 0x00000001
	UsnReasonDataExtend         uint32 = 0x00000002
	UsnReasonDataTruncation     uint32 = 0x00000004
	UsnReasonNamedDataOverwrite uint32 = 0x00000010
	UsnReasonNamedDataExtend    uint32 = 0x00000020
	UsnReasonNamedDataTrunc     uint32 = 0x00000040
	UsnReasonFileCreate         uint32 = 0x00000100
	UsnReasonFileDelete         uint32 = 0x00000200
	UsnReasonEAChange           uint32 = 0x00000400
	UsnReasonSecurityChange     uint32 = 0x00000800
	UsnReasonRenameOldName      uint32 = 0x00001000
	UsnReasonRenameNewName      uint32 = 0x00002000
	UsnReasonIndexableChange    uint32 = 0x00004000
	UsnReasonBasicInfoChange    uint32 = 0x00008000
	UsnReasonHardLinkChange     uint32 = 0x00010000
	UsnReasonCompressionChange  uint32 = 0x00020000
	UsnReasonEncryptionChange   uint32 = 0x00040000
	UsnReasonObjectIDChange     uint32 = 0x00080000
	UsnReasonReparsePointChange uint32 = 0x00100000
	UsnReasonStreamChange       uint32 = 0x00200000
	UsnReasonTransactedChange   uint32 = 0x00400000
	UsnReasonClose              uint32 = 0x80000000
)

// USNRecord is a decoded USN change-journal record: length, major/minor
// version, file reference, parent file reference, USN, timestamp,
// reason, source info, security ID, file attributes, name. The decoder
// dispatches on MajorVersion to read the v2 (8-byte FRN) or v3 (16-byte
// FRN, low 8 used) layout.
type USNRecord struct {
	RecordLength   uint32
	MajorVersion   uint16
	MinorVersion   uint16
	FileReference  FileReference
	ParentFRN      FileReference
	USN            int64
	Timestamp      uint64
	Reason         uint32
	SourceInfo     uint32
	SecurityID     uint32
	FileAttributes uint32
	FileName       string
}

func (r *USNRecord) Validate() bool {
	return r.USN > 0 && r.RecordLength != 0
}

func (r *USNRecord) HasReason(bit uint32) bool {
	return r.Reason&bit != 0
}

// ParseUSNRecord decodes one USN record starting at offset 0 of buf.
func ParseUSNRecord(buf []byte) (*USNRecord, error) {
	if len(buf) < 8 {
		return nil, ErrTruncated
	}

	recordLength, _ := readUint32(buf, 0x00)
	if recordLength < 8 || int(recordLength) > len(buf) {
		return nil, fmt.Errorf("%w: usn record length out of bounds", ErrMalformed)
	}

	major, _ := readUint16(buf, 0x04)
	minor, _ := readUint16(buf, 0x06)

	switch major {
	case 2:
		return parseUSNRecordV2(buf[:recordLength], recordLength, major, minor)
	case 3:
		return parseUSNRecordV3(buf[:recordLength], recordLength, major, minor)
	default:
		return nil, fmt.Errorf("%w: unsupported usn major version %d", ErrMalformed, major)
	}
}

func parseUSNRecordV2(buf []byte, recordLength uint32, major, minor uint16) (*USNRecord, error) {
	if len(buf) < 0x3C {
		return nil, ErrTruncated
	}

	fileRef, _ := readUint64(buf, 0x08)
	parentRef, _ := readUint64(buf, 0x10)
	usn, _ := readUint64(buf, 0x18)
	timestamp, _ := readUint64(buf, 0x20)
	reason, _ := readUint32(buf, 0x28)
	sourceInfo, _ := readUint32(buf, 0x2C)
	securityID, _ := readUint32(buf, 0x30)
	fileAttrs, _ := readUint32(buf, 0x34)
	nameLength, _ := readUint16(buf, 0x38)
	nameOffset, _ := readUint16(buf, 0x3A)

	name, err := readUSNName(buf, nameOffset, nameLength)
	if err != nil {
		return nil, err
	}

	return &USNRecord{
		RecordLength:   recordLength,
		MajorVersion:   major,
		MinorVersion:   minor,
		FileReference:  FileReference(fileRef),
		ParentFRN:      FileReference(parentRef),
		USN:            int64(usn),
		Timestamp:      timestamp,
		Reason:         reason,
		SourceInfo:     sourceInfo,
		SecurityID:     securityID,
		FileAttributes: fileAttrs,
		FileName:       name,
	}, nil
}

// parseUSNRecordV3 decodes the 128-bit-FRN record layout, taking only
// the low 8 bytes of each reference.
func parseUSNRecordV3(buf []byte, recordLength uint32, major, minor uint16) (*USNRecord, error) {
	if len(buf) < 0x4C {
		return nil, ErrTruncated
	}

	fileRef, _ := readUint64(buf, 0x08)
	parentRef, _ := readUint64(buf, 0x18)
	usn, _ := readUint64(buf, 0x28)
	timestamp, _ := readUint64(buf, 0x30)
	reason, _ := readUint32(buf, 0x38)
	sourceInfo, _ := readUint32(buf, 0x3C)
	securityID, _ := readUint32(buf, 0x40)
	fileAttrs, _ := readUint32(buf, 0x44)
	nameLength, _ := readUint16(buf, 0x48)
	nameOffset, _ := readUint16(buf, 0x4A)

	name, err := readUSNName(buf, nameOffset, nameLength)
	if err != nil {
		return nil, err
	}

	return &USNRecord{
		RecordLength:   recordLength,
		MajorVersion:   major,
		MinorVersion:   minor,
		FileReference:  FileReference(fileRef),
		ParentFRN:      FileReference(parentRef),
		USN:            int64(usn),
		Timestamp:      timestamp,
		Reason:         reason,
		SourceInfo:     sourceInfo,
		SecurityID:     securityID,
		FileAttributes: fileAttrs,
		FileName:       name,
	}, nil
}

func readUSNName(buf []byte, nameOffset, nameLength uint16) (string, error) {
	end := int(nameOffset) + int(nameLength)
	if end > len(buf) {
		return "", fmt.Errorf("%w: usn file name out of bounds", ErrMalformed)
	}
	return ParseUTF16String(buf[nameOffset:end]), nil
}

// NextUSNRecord re-syncs onto the next record in buf starting at offset,
// scanning past null padding. maxOffset bounds the scan to the end of
// the valid reply region.
func NextUSNRecord(buf []byte, offset int, maxOffset int) (*USNRecord, int, error) {
	for offset < maxOffset {
		if offset+8 > len(buf) {
			return nil, offset, nil
		}

		// Skip null padding between records.
		allZero := true
		for i := offset; i < offset+8 && i < len(buf); i++ {
			if buf[i] != 0 {
				allZero = false
				break
			}
		}
		if allZero {
			offset += 8
			continue
		}

		record, err := ParseUSNRecord(buf[offset:])
		if err != nil {
			return nil, offset, err
		}
		if !record.Validate() {
			offset += 8
			continue
		}
		return record, offset + int(record.RecordLength), nil
	}
	return nil, offset, nil
}
