package decoder

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func writePNG(path string, width int, shade uint8) {
	img := image.NewGray(image.Rect(0, 0, width, 10))
	for x := 0; x < width; x++ {
		img.SetGray(x, 0, color.Gray{Y: shade})
	}
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()
	Expect(png.Encode(f, img)).To(Succeed())
}

var _ = Describe("FileCamera", func() {
	var (
		tmpDir string
		camera *FileCamera
		stream Stream
		err    error
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	JustBeforeEach(func() {
		stream, err = camera.Open(context.Background(), Constraints{Facing: FacingEnvironment})
	})

	AfterEach(func() {
		if stream != nil {
			stream.Close()
		}
	})

	When("the path is a single image", func() {
		BeforeEach(func() {
			path := filepath.Join(tmpDir, "frame.png")
			writePNG(path, 40, 0)
			camera = NewFileCamera(path)
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep returning the same frame", func() {
			first, frameErr := stream.Frame(context.Background())
			Expect(frameErr).NotTo(HaveOccurred())
			second, frameErr := stream.Frame(context.Background())
			Expect(frameErr).NotTo(HaveOccurred())
			Expect(second).To(BeIdenticalTo(first))
		})

		It("should end the stream once closed", func() {
			Expect(stream.Close()).To(Succeed())
			_, frameErr := stream.Frame(context.Background())
			Expect(frameErr).To(MatchError(ErrStreamEnded))
		})
	})

	When("the path is a directory", func() {
		BeforeEach(func() {
			writePNG(filepath.Join(tmpDir, "b.png"), 20, 0)
			writePNG(filepath.Join(tmpDir, "a.png"), 10, 0)
			Expect(os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("skip me"), 0644)).To(Succeed())
			camera = NewFileCamera(tmpDir)
		})

		It("should play frames in name order and hold the last one", func() {
			Expect(err).NotTo(HaveOccurred())
			widths := []int{}
			for i := 0; i < 3; i++ {
				frame, frameErr := stream.Frame(context.Background())
				Expect(frameErr).NotTo(HaveOccurred())
				widths = append(widths, frame.Bounds().Dx())
			}
			Expect(widths).To(Equal([]int{10, 20, 20}))
		})
	})

	When("the directory has no images", func() {
		BeforeEach(func() {
			camera = NewFileCamera(tmpDir)
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("no frames found")))
		})
	})

	When("the path does not exist", func() {
		BeforeEach(func() {
			camera = NewFileCamera(filepath.Join(tmpDir, "missing"))
		})

		It("should return an error", func() {
			Expect(err).To(MatchError(ContainSubstring("opening camera source")))
		})
	})

	When("the file is not an image", func() {
		BeforeEach(func() {
			path := filepath.Join(tmpDir, "broken.png")
			Expect(os.WriteFile(path, []byte("not a png"), 0644)).To(Succeed())
			camera = NewFileCamera(path)
		})

		It("should return a decoding error", func() {
			Expect(err).To(MatchError(ContainSubstring("decoding image")))
		})
	})
})

var _ = Describe("isHEICFormat", func() {
	It("should detect a HEIC brand", func() {
		data := append([]byte{0, 0, 0, 24}, []byte("ftypheic0000")...)
		Expect(isHEICFormat(data)).To(BeTrue())
	})

	It("should reject other data", func() {
		Expect(isHEICFormat([]byte("\x89PNG\r\n\x1a\n0000"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})
})
