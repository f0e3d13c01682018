package v4l2

// commonResolutions are offered for drivers that report a size range.
var commonResolutions = []Resolution{
	{320, 240},   // QVGA
	{640, 480},   // VGA
	{800, 600},   // SVGA
	{1024, 768},  // XGA
	{1280, 720},  // HD
	{1280, 960},
	{1280, 1024}, // SXGA
	{1920, 1080}, // Full HD
	{1920, 1200}, // WUXGA
	{1920, 1280},
	{2560, 1440}, // QHD
	{3840, 2160}, // 4K UHD
	{4096, 2160}, // 4K DCI
}

func commonFramerates() []Framerate {
	return []Framerate{
		{1, 60},
		{1, 50},
		{1, 30},
		{1, 25},
		{1, 20},
		{1, 15},
		{1, 10},
		{1, 5},
	}
}

// FrameSize returns the nominal byte size of one uncompressed frame, or 0
// when the format is compressed or unknown.
func FrameSize(pixelFormat PixelFormat, width, height uint32) uint32 {
	switch pixelFormat {
	case PixelFormatYUYV:
		return width * height * 2
	case PixelFormatNV12:
		return width * height * 3 / 2
	default:
		return 0
	}
}
