package ocr

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Preprocessing constants. Tuned for small-print receipts: the 2x cubic
// upscale gives Tesseract enough pixels per glyph, the bilateral pass kills
// sensor noise without rounding text edges, and the adaptive threshold copes
// with uneven lighting on curled thermal paper.
const (
	upscaleFactor   = 2
	bilateralRadius = 4 // 9x9 window
	bilateralSigma  = 75.0
	thresholdBlock  = 31
	thresholdOffset = 10
)

// Preprocess converts a decoded color image into the binarized, upscaled
// single-channel image the OCR engine expects: grayscale, 2x cubic upscale,
// edge-preserving smoothing, then Gaussian adaptive thresholding. Pure
// transform; it never fails for a decoded image.
func Preprocess(src image.Image) *image.Gray {
	b := src.Bounds()
	up := imaging.Resize(
		imaging.Grayscale(src),
		b.Dx()*upscaleFactor,
		b.Dy()*upscaleFactor,
		imaging.CatmullRom,
	)
	gray := toGray(up)
	smoothed := bilateralFilter(gray, bilateralRadius, bilateralSigma, bilateralSigma)
	return adaptiveThreshold(smoothed, thresholdBlock, thresholdOffset)
}

// toGray flattens an already-grayscale NRGBA into a single channel.
func toGray(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		srow := src.Pix[y*src.Stride:]
		drow := dst.Pix[y*dst.Stride:]
		for x := 0; x < b.Dx(); x++ {
			drow[x] = srow[x*4] // R == G == B after Grayscale
		}
	}
	return dst
}

// bilateralFilter smooths while preserving edges: each output pixel is a
// weighted average of its window, where weight falls off with both spatial
// distance and intensity difference. Borders are clamped.
func bilateralFilter(src *image.Gray, radius int, sigmaColor, sigmaSpace float64) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))

	size := 2*radius + 1
	spatial := make([]float64, size*size)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := float64(dx*dx + dy*dy)
			spatial[(dy+radius)*size+(dx+radius)] = math.Exp(-d2 / (2 * sigmaSpace * sigmaSpace))
		}
	}
	var colorWeight [256]float64
	for d := 0; d < 256; d++ {
		colorWeight[d] = math.Exp(-float64(d*d) / (2 * sigmaColor * sigmaColor))
	}

	clamp := func(v, lo, hi int) int {
		if v < lo {
			return lo
		}
		if v > hi {
			return hi
		}
		return v
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			center := src.Pix[y*src.Stride+x]
			var sum, norm float64
			for dy := -radius; dy <= radius; dy++ {
				sy := clamp(y+dy, 0, h-1)
				for dx := -radius; dx <= radius; dx++ {
					sx := clamp(x+dx, 0, w-1)
					p := src.Pix[sy*src.Stride+sx]
					diff := int(p) - int(center)
					if diff < 0 {
						diff = -diff
					}
					wgt := spatial[(dy+radius)*size+(dx+radius)] * colorWeight[diff]
					sum += wgt * float64(p)
					norm += wgt
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(sum/norm + 0.5)
		}
	}
	return dst
}

// adaptiveThreshold binarizes against a Gaussian-weighted local mean: a pixel
// becomes white when it exceeds the mean of its block minus the offset
// constant, black otherwise. Output pixels are exactly 0 or 255.
func adaptiveThreshold(src *image.Gray, block, offset int) *image.Gray {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	radius := block / 2

	// Separable Gaussian with the conventional sigma for this kernel size.
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	kernel := make([]float64, block)
	var ksum float64
	for i := 0; i < block; i++ {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		ksum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	clamp := func(v, hi int) int {
		if v < 0 {
			return 0
		}
		if v > hi {
			return hi
		}
		return v
	}

	// Horizontal pass.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var acc float64
			for i := 0; i < block; i++ {
				acc += kernel[i] * float64(row[clamp(x+i-radius, w-1)])
			}
			tmp[y*w+x] = acc
		}
	}

	// Vertical pass and threshold.
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for i := 0; i < block; i++ {
				mean += kernel[i] * tmp[clamp(y+i-radius, h-1)*w+x]
			}
			if float64(src.Pix[y*src.Stride+x]) > mean-float64(offset) {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}
