package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/smazurov/tinycam/pkg/linuxav/v4l2"
)

// ErrNotImage is returned for formats that cannot be shown as a JPEG.
var ErrNotImage = errors.New("frame format has no JPEG representation")

// DefaultJPEGQuality is used when converting raw frames.
const DefaultJPEGQuality = 80

// JPEG returns p as a JPEG image. MJPEG frames are returned as-is and YUYV
// frames are encoded.
func JPEG(p *Picture, quality int) ([]byte, error) {
	switch p.Format.PixelFormat {
	case v4l2.PixelFormatMJPEG:
		return p.Data, nil
	case v4l2.PixelFormatYUYV:
		img, err := YUYVImage(p.Data, int(p.Format.Width), int(p.Format.Height), int(p.Format.BytesPerLine))
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotImage, p.Format.FourCC())
	}
}

// YUYVImage converts packed YUYV 4:2:2 into a planar YCbCr image. stride
// is the bytes per line reported by the driver; zero means 2*width.
func YUYVImage(data []byte, width, height, stride int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("invalid YUYV dimensions %dx%d", width, height)
	}
	if stride == 0 {
		stride = width * 2
	}
	if stride < width*2 || len(data) < stride*(height-1)+width*2 {
		return nil, fmt.Errorf("YUYV frame too short: %d bytes for %dx%d", len(data), width, height)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := range height {
		row := data[y*stride : y*stride+width*2]
		yOff := y * img.YStride
		cOff := y * img.CStride
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[yOff+x] = row[i]
			img.Cb[cOff+x/2] = row[i+1]
			img.Y[yOff+x+1] = row[i+2]
			img.Cr[cOff+x/2] = row[i+3]
		}
	}
	return img, nil
}
