package ntfs

import "fmt"

// Attribute type codes, as they appear in an MFT record's attribute
// header Type field.
const (
	AttrTypeStandardInformation uint32 = 0x10
	AttrTypeAttributeList       uint32 = 0x20
	AttrTypeFileName            uint32 = 0x30
	AttrTypeObjectID            uint32 = 0x40
	AttrTypeSecurityDescriptor  uint32 = 0x50
	AttrTypeVolumeName          uint32 = 0x60
	AttrTypeVolumeInformation   uint32 = 0x70
	AttrTypeData                uint32 = 0x80
	AttrTypeIndexRoot           uint32 = 0x90
	AttrTypeIndexAllocation     uint32 = 0xA0
	AttrTypeBitmap              uint32 = 0xB0
	AttrTypeReparsePoint        uint32 = 0xC0
	AttrTypeEAInformation       uint32 = 0xD0
	AttrTypeEA                  uint32 = 0xE0
	AttrTypeLoggedUtilityStream uint32 = 0x100
)

// Attribute is a decoded attribute header plus a view onto its value,
// resident or not.
type Attribute struct {
	raw []byte

	Type         uint32
	Length       uint32
	NonResident  bool
	NameLength   uint8
	NameOffset   uint16
	Flags        uint16
	AttributeID  uint16
	Name         string

	// Resident fields.
	ContentSize   uint32
	ContentOffset uint16

	// Non-resident fields.
	StartingVCN      uint64
	LastVCN          uint64
	RunListOffset    uint16
	CompressionUnit  uint16
	NRAllocatedSize  uint64
	NRRealSize       uint64
	InitializedSize  uint64
}

func parseAttribute(raw []byte) (*Attribute, error) {
	if len(raw) < 16 {
		return nil, ErrTruncated
	}

	attrType, _ := readUint32(raw, 0x00)
	length, _ := readUint32(raw, 0x04)
	nonResidentFlag := raw[0x08]
	nameLength := raw[0x09]
	nameOffset, _ := readUint16(raw, 0x0A)
	flags, _ := readUint16(raw, 0x0C)
	attributeID, _ := readUint16(raw, 0x0E)

	a := &Attribute{
		raw:         raw,
		Type:        attrType,
		Length:      length,
		NonResident: nonResidentFlag != 0,
		NameLength:  nameLength,
		NameOffset:  nameOffset,
		Flags:       flags,
		AttributeID: attributeID,
	}

	if nameLength > 0 {
		nameEnd := int(nameOffset) + int(nameLength)*2
		if nameEnd > len(raw) {
			return nil, fmt.Errorf("%w: attribute name out of bounds", ErrMalformed)
		}
		a.Name = ParseUTF16String(raw[nameOffset:nameEnd])
	}

	if !a.NonResident {
		contentSize, _ := readUint32(raw, 0x10)
		contentOffset, _ := readUint16(raw, 0x14)
		a.ContentSize = contentSize
		a.ContentOffset = contentOffset

		if int(contentOffset)+int(contentSize) > len(raw) {
			return nil, fmt.Errorf("%w: resident content out of bounds", ErrMalformed)
		}
	} else {
		if len(raw) < 0x40 {
			return nil, fmt.Errorf("%w: non-resident header truncated", ErrTruncated)
		}
		startVCN, _ := readUint64(raw, 0x10)
		lastVCN, _ := readUint64(raw, 0x18)
		runListOffset, _ := readUint16(raw, 0x20)
		compressionUnit, _ := readUint16(raw, 0x22)
		allocatedSize, _ := readUint64(raw, 0x28)
		realSize, _ := readUint64(raw, 0x30)
		initializedSize, _ := readUint64(raw, 0x38)

		a.StartingVCN = startVCN
		a.LastVCN = lastVCN
		a.RunListOffset = runListOffset
		a.CompressionUnit = compressionUnit
		a.NRAllocatedSize = allocatedSize
		a.NRRealSize = realSize
		a.InitializedSize = initializedSize
	}

	return a, nil
}

// Content returns the resident value bytes. Callers must not call this
// on a non-resident attribute.
func (a *Attribute) Content() []byte {
	if a.NonResident {
		return nil
	}
	return a.raw[a.ContentOffset : a.ContentOffset+uint16(a.ContentSize)]
}

// IsUnnamed reports whether this is the default stream: the unnamed
// $DATA attribute (zero name length) is a file's primary content.
func (a *Attribute) IsUnnamed() bool {
	return a.NameLength == 0
}

// Size returns the attribute's logical and allocated sizes. For a
// resident attribute both equal the value length. For a non-resident
// attribute, logical size is the real_size field and allocated size
// comes from the attribute header rather than summing the data runs,
// since sparse and compressed runs make the run-sum diverge from the
// allocation NTFS actually tracks.
func (a *Attribute) Size() (logical, allocated uint64) {
	if !a.NonResident {
		return uint64(a.ContentSize), uint64(a.ContentSize)
	}
	return a.NRRealSize, a.NRAllocatedSize
}

// Run is one decoded data-run: a cluster count, and either a signed delta
// applied to the running LCN, or Sparse=true for O==0.
type Run struct {
	ClusterCount uint64
	Sparse       bool
	LCN          int64 // absolute LCN, already cumulated; meaningless if Sparse.
}

// DataRuns decodes the non-resident data-run list: each run starts with
// a header byte whose low nibble is the length-field byte count and
// high nibble is the offset-field byte count. The offset field is a
// signed delta, sign-extended from its top bit, added to the running
// LCN; an offset-field count of zero marks a sparse run.
func (a *Attribute) DataRuns() ([]Run, error) {
	if !a.NonResident {
		return nil, nil
	}

	start := int(a.RunListOffset)
	if start > len(a.raw) {
		return nil, fmt.Errorf("%w: run list offset out of bounds", ErrMalformed)
	}

	buf := a.raw[start:]
	var runs []Run
	var lcn int64

	offset := 0
	for offset < len(buf) {
		header := buf[offset]
		if header == 0 {
			break
		}

		lengthSize := int(header & 0x0F)
		offsetSize := int(header >> 4)
		offset++

		if offset+lengthSize+offsetSize > len(buf) {
			return runs, fmt.Errorf("%w: data run truncated", ErrTruncated)
		}

		length := readLittleEndianUnsigned(buf[offset : offset+lengthSize])
		offset += lengthSize

		if offsetSize == 0 {
			runs = append(runs, Run{ClusterCount: length, Sparse: true})
			continue
		}

		delta := readLittleEndianSigned(buf[offset : offset+offsetSize])
		offset += offsetSize

		lcn += delta
		runs = append(runs, Run{ClusterCount: length, LCN: lcn})
	}

	return runs, nil
}

func readLittleEndianUnsigned(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// readLittleEndianSigned reads b as a little-endian two's-complement
// signed integer, sign-extending from the top bit of the last byte.
func readLittleEndianSigned(b []byte) int64 {
	padded := make([]byte, 8)
	copy(padded, b)
	if len(b) > 0 && b[len(b)-1]&0x80 != 0 {
		for i := len(b); i < 8; i++ {
			padded[i] = 0xFF
		}
	}
	return int64(readLittleEndianUnsigned(padded))
}

// SumDataRunClusters sums the non-sparse cluster counts, for a
// diagnostic cross-check against the attribute's allocated size.
func SumDataRunClusters(runs []Run) uint64 {
	var total uint64
	for _, r := range runs {
		if !r.Sparse {
			total += r.ClusterCount
		}
	}
	return total
}
