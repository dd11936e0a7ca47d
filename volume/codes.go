package volume

// Device-control codes for the FSCTLs this package issues.
const (
	FSCTLGetNTFSVolumeData    uint32 = 0x00090064
	FSCTLGetNTFSFileRecord    uint32 = 0x00090068
	FSCTLGetRetrievalPointers uint32 = 0x00090073
	FSCTLEnumUSNData          uint32 = 0x000900B3
	FSCTLReadUSNJournal       uint32 = 0x000900BB
	FSCTLQueryUSNJournal      uint32 = 0x000900F4
)
