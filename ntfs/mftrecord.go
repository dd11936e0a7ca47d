package ntfs

import "fmt"

// MFT record header flags.
const (
	MFTFlagInUse     uint16 = 0x0001
	MFTFlagDirectory uint16 = 0x0002
)

// MFTRecord is a decoded, fixed-up MFT record header plus the raw buffer
// attribute walking reads from. Field offsets follow the standard NTFS
// MFT record layout.
type MFTRecord struct {
	buffer []byte

	UsaOffset       uint16
	UsaCount        uint16
	LogfileSeqNum   uint64
	SequenceNumber  uint16
	LinkCount       uint16
	FirstAttrOffset uint16
	Flags           uint16
	UsedSize        uint32
	AllocatedSize   uint32
	BaseRecordRef   uint64
	NextAttributeID uint16
	RecordNumber    uint32
}

// ParseMFTRecord decodes and fixup-repairs a raw MFT record buffer. The
// buffer is mutated in place by ApplyFixups.
func ParseMFTRecord(buffer []byte) (*MFTRecord, error) {
	if len(buffer) < 0x30 {
		return nil, ErrTruncated
	}

	if string(buffer[0:4]) != "FILE" {
		return nil, ErrBadSignature
	}

	usaOffset, _ := readUint16(buffer, 0x04)
	usaCount, _ := readUint16(buffer, 0x06)

	if err := ApplyFixups(buffer, int(usaOffset), int(usaCount)); err != nil {
		return nil, err
	}

	lsn, _ := readUint64(buffer, 0x08)
	seq, _ := readUint16(buffer, 0x10)
	linkCount, _ := readUint16(buffer, 0x12)
	attrOffset, _ := readUint16(buffer, 0x14)
	flags, _ := readUint16(buffer, 0x16)
	usedSize, _ := readUint32(buffer, 0x18)
	allocatedSize, _ := readUint32(buffer, 0x1C)
	baseRef, _ := readUint64(buffer, 0x20)
	nextAttrID, _ := readUint16(buffer, 0x28)
	recordNumber, ok := readUint32(buffer, 0x2C)
	if !ok {
		recordNumber = 0
	}

	if int(attrOffset) > len(buffer) {
		return nil, fmt.Errorf("%w: attribute offset out of bounds", ErrMalformed)
	}

	return &MFTRecord{
		buffer:          buffer,
		UsaOffset:       usaOffset,
		UsaCount:        usaCount,
		LogfileSeqNum:   lsn,
		SequenceNumber:  seq,
		LinkCount:       linkCount,
		FirstAttrOffset: attrOffset,
		Flags:           flags,
		UsedSize:        usedSize,
		AllocatedSize:   allocatedSize,
		BaseRecordRef:   baseRef,
		NextAttributeID: nextAttrID,
		RecordNumber:    recordNumber,
	}, nil
}

func (r *MFTRecord) InUse() bool {
	return r.Flags&MFTFlagInUse != 0
}

func (r *MFTRecord) IsDirectory() bool {
	return r.Flags&MFTFlagDirectory != 0
}

// IsExtensionRecord reports whether this record is an extension of
// another base record (its BaseRecordRef points elsewhere); these carry
// overflow attributes and are skipped at this layer rather than chased.
func (r *MFTRecord) IsExtensionRecord() bool {
	return r.BaseRecordRef&recordNumberMask != 0
}

// EnumerateAttributes walks the attribute list starting at
// FirstAttrOffset, stopping on the 0xFFFFFFFF end marker or an
// out-of-bounds length.
func (r *MFTRecord) EnumerateAttributes() ([]*Attribute, error) {
	var result []*Attribute

	offset := int(r.FirstAttrOffset)
	for {
		if offset+8 > len(r.buffer) {
			break
		}

		attrType, _ := readUint32(r.buffer, offset)
		if attrType == 0xFFFFFFFF {
			break
		}

		length, ok := readUint32(r.buffer, offset+4)
		if !ok || length < 16 || int(length) > len(r.buffer)-offset {
			return result, fmt.Errorf("%w: attribute length out of bounds at offset %d", ErrMalformed, offset)
		}

		attr, err := parseAttribute(r.buffer[offset : offset+int(length)])
		if err != nil {
			return result, err
		}
		result = append(result, attr)

		offset += int(length)
	}

	return result, nil
}

// FindAttribute returns the first attribute of the given type. A match
// found before a malformed attribute stops the walk is still returned;
// the walk error is returned only when no match was found.
func (r *MFTRecord) FindAttribute(attrType uint32) (*Attribute, error) {
	attrs, err := r.EnumerateAttributes()
	for _, a := range attrs {
		if a.Type == attrType {
			return a, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return nil, nil
}
