package hdrbake_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vearutop/hdrbake"
)

func ExampleIsUltraHDR() {
	f, err := os.Open(filepath.FromSlash("testdata/uhdr.jpg"))
	if err != nil {
		return
	}
	defer f.Close()

	_, _ = hdrbake.IsUltraHDR(f)
}

func ExampleConvertFile() {
	space := hdrbake.ColorSpaceDisplayP3.Chromaticities()
	ev := float32(-0.5)

	_ = hdrbake.ConvertFile(context.Background(), filepath.FromSlash("testdata/scene.exr"),
		hdrbake.Outputs{PNG: "scene.png", JPEG: "scene.jpg"},
		hdrbake.Options{
			Pipeline: hdrbake.PipelineOptions{OutputSpace: &space, Exposure: &ev},
			Profile:  hdrbake.DefaultProfile(),
		},
	)
}

func ExampleConvert() {
	img := hdrbake.NewLinearImage(2, 1)
	img.Set(0, 0, hdrbake.Pixel{R: 1, G: 1, B: 1})
	img.Set(1, 0, hdrbake.Pixel{R: 0.5, G: 0.5, B: 0.5})

	res, err := hdrbake.Convert(context.Background(), img, hdrbake.Options{Profile: hdrbake.DefaultProfile()})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(res.Display.Pix)

	// Output:
	// [255 255 255 191 191 191]
}

func ExampleSplit() {
	img := hdrbake.NewLinearImage(8, 8)
	for i := range img.Pix {
		img.Pix[i] = hdrbake.Pixel{R: float32(i % 8), G: 1, B: 1}
	}
	p := hdrbake.DefaultProfile()
	res, err := hdrbake.Convert(context.Background(), img, hdrbake.Options{Profile: p, GainMap: true})
	if err != nil {
		return
	}
	data, err := res.EncodeUltraHDR(p)
	if err != nil {
		return
	}

	ct, err := hdrbake.Split(data)
	if err != nil {
		return
	}
	fmt.Println(ct.Meta.Version, len(ct.PrimaryJPEG)+len(ct.GainMapJPEG) == len(data), bytes.HasPrefix(ct.GainMapJPEG, []byte{0xFF, 0xD8}))

	// Output:
	// 1.0 true true
}
