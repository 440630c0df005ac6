// Package hdrbake converts scene-referred linear-light images into display-referred
// rasters and UltraHDR JPEG/R containers.
//
// The pipeline derives RGB<->XYZ matrices from chromaticities, applies exposure and a
// gamma transfer function to produce 8-bit SDR pixels, and computes a log2 gain map
// that lets HDR-capable renderers recover the scene-referred luminance. The container
// (ICC profile, XMP, MPF) is assembled in Go around image/jpeg output.
package hdrbake
