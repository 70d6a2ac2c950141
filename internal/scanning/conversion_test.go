package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func sampleImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	return img
}

var _ = Describe("prepareImageData", func() {
	When("the image is already PNG", func() {
		It("should return the bytes untouched", func() {
			data := []byte("declared as png")
			out, err := prepareImageData(data, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(data))
		})
	})

	When("the image is JPEG", func() {
		var data []byte

		BeforeEach(func() {
			var buf bytes.Buffer
			Expect(jpeg.Encode(&buf, sampleImage(), nil)).To(Succeed())
			data = buf.Bytes()
		})

		It("should convert it to PNG", func() {
			out, err := prepareImageData(data, "IMAGE/JPEG ")
			Expect(err).NotTo(HaveOccurred())
			_, err = png.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should sniff the format when no content type is given", func() {
			out, err := prepareImageData(data, "")
			Expect(err).NotTo(HaveOccurred())
			_, err = png.Decode(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
		})
	})

	When("the data is not an image", func() {
		It("should return a decoding error", func() {
			_, err := prepareImageData([]byte("plain text"), "text/plain")
			Expect(err).To(MatchError(ContainSubstring("decoding image")))
			Expect(err).To(MatchError(ErrUnsupportedImage))
		})
	})

	When("the data is empty", func() {
		It("should return an error", func() {
			_, err := prepareImageData(nil, "image/png")
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("prepareVisionImage", func() {
	var jpegData []byte

	BeforeEach(func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, sampleImage(), nil)).To(Succeed())
		jpegData = buf.Bytes()
	})

	It("should keep a JPEG as it is", func() {
		out, err := prepareVisionImage(jpegData, "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(jpegData))
	})

	It("should keep a sniffed JPEG as it is", func() {
		out, err := prepareVisionImage(jpegData, "application/octet-stream")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(jpegData))
	})

	It("should keep a GIF as it is", func() {
		var buf bytes.Buffer
		Expect(gif.Encode(&buf, sampleImage(), nil)).To(Succeed())
		out, err := prepareVisionImage(buf.Bytes(), "image/gif")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(buf.Bytes()))
	})

	It("should reject empty data", func() {
		_, err := prepareVisionImage(nil, "image/jpeg")
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})

	It("should reject data it cannot decode", func() {
		_, err := prepareVisionImage([]byte("plain text"), "text/plain")
		Expect(err).To(MatchError(ErrUnsupportedImage))
	})
})

var _ = Describe("isHEIC", func() {
	It("should detect a HEIC ftyp box", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEIC(data)).To(BeTrue())
	})

	It("should reject short or unrelated data", func() {
		Expect(isHEIC([]byte("short"))).To(BeFalse())
		Expect(isHEIC([]byte("\x00\x00\x00\x18ftypmp42"))).To(BeFalse())
	})
})
