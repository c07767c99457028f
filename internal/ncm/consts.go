package ncm

const (
	// ChunkSize 32KB
	ChunkSize = 1 << 15
	// BufferSize 1MB
	BufferSize = 1 << 20

	LeadingSize   = 4
	KeystreamSize = 256

	keyMask  = 0x64
	metaMask = 0x63

	// `neteasecloudmusic`
	keyPrefixSize = 17
	// `163 key(Don't modify):`
	metaPrefixSize = 22
	// `music:`
	musicPrefixSize = 6

	reservedAfterMagic = 2
	reservedAfterMeta  = 5

	FormatMP3  = "mp3"
	FormatFLAC = "flac"
)

var (
	// 4354454e4644414d
	MagicHeader     = [8]byte{0x43, 0x54, 0x45, 0x4e, 0x46, 0x44, 0x41, 0x4d}
	MagicHeaderSize = len(MagicHeader)

	// 687A4852416D736F356B496E62617857
	coreKey = [16]byte{0x68, 0x7A, 0x48, 0x52, 0x41, 0x6D, 0x73, 0x6F, 0x35, 0x6B, 0x49, 0x6E, 0x62, 0x61, 0x78, 0x57}
	// 2331346C6A6B5F215C5D2630553C2728
	metaKey = [16]byte{0x23, 0x31, 0x34, 0x6C, 0x6A, 0x6B, 0x5F, 0x21, 0x5C, 0x5D, 0x26, 0x30, 0x55, 0x3C, 0x27, 0x28}
)
