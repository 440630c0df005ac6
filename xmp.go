package hdrbake

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

const (
	hdrgmNamespace = "http://ns.adobe.com/hdr-gain-map/1.0/"
)

// GainMapXMP is the hdrgm metadata attached to the gain map image. Gain
// values are log2.
type GainMapXMP struct {
	Version            string
	GainMapMin         float32
	GainMapMax         float32
	Gamma              float32
	OffsetSDR          float32
	OffsetHDR          float32
	HDRCapacityMin     float32
	HDRCapacityMax     float32
	BaseRenditionIsHDR bool
}

// NewGainMapXMP describes gm with the given offsets. HDR capacity mirrors the
// gain range.
func NewGainMapXMP(gm *GainMap, off GainOffsets) GainMapXMP {
	return GainMapXMP{
		Version:        jpegrVersion,
		GainMapMin:     gm.MinLog2,
		GainMapMax:     gm.MaxLog2,
		Gamma:          gm.Gamma,
		OffsetSDR:      off.SDR,
		OffsetHDR:      off.HDR,
		HDRCapacityMin: gm.MinLog2,
		HDRCapacityMax: gm.MaxLog2,
	}
}

var xmpTemplates = template.Must(template.New("xmp").Funcs(template.FuncMap{
	"f": formatFloat,
}).Parse(`{{define "gainmap"}}<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:hdrgm="` + hdrgmNamespace + `"
        hdrgm:Version="{{.Version}}"
        hdrgm:GainMapMin="{{f .GainMapMin}}"
        hdrgm:GainMapMax="{{f .GainMapMax}}"
        hdrgm:Gamma="{{f .Gamma}}"
        hdrgm:OffsetSDR="{{f .OffsetSDR}}"
        hdrgm:OffsetHDR="{{f .OffsetHDR}}"
        hdrgm:HDRCapacityMin="{{f .HDRCapacityMin}}"
        hdrgm:HDRCapacityMax="{{f .HDRCapacityMax}}"
        hdrgm:BaseRenditionIsHDR="{{if .BaseRenditionIsHDR}}True{{else}}False{{end}}"/>
  </rdf:RDF>
</x:xmpmeta>{{end}}
{{define "container"}}<x:xmpmeta xmlns:x="adobe:ns:meta/" x:xmptk="Adobe XMP Core 5.1.2">
  <rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
    <rdf:Description rdf:about=""
        xmlns:Container="http://ns.google.com/photos/1.0/container/"
        xmlns:Item="http://ns.google.com/photos/1.0/container/item/"
        xmlns:hdrgm="` + hdrgmNamespace + `"
        hdrgm:Version="{{.Version}}">
      <Container:Directory>
        <rdf:Seq>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="Primary" Item:Mime="image/jpeg"/>
          </rdf:li>
          <rdf:li rdf:parseType="Resource">
            <Container:Item Item:Semantic="GainMap" Item:Mime="image/jpeg" Item:Length="{{.Length}}"/>
          </rdf:li>
        </rdf:Seq>
      </Container:Directory>
    </rdf:Description>
  </rdf:RDF>
</x:xmpmeta>{{end}}`))

func formatFloat(v float32) string {
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}

func renderXMP(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmpNamespace)
	buf.WriteByte(0)
	if err := xmpTemplates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, errors.Wrapf(err, "render %s xmp", name)
	}
	return buf.Bytes(), nil
}

// Marshal renders the APP1 payload, namespace prefix included.
func (x GainMapXMP) Marshal() ([]byte, error) {
	return renderXMP("gainmap", x)
}

// ContainerXMP renders the primary image directory APP1 payload advertising
// a gain map of gainMapLen bytes.
func ContainerXMP(gainMapLen int) ([]byte, error) {
	return renderXMP("container", struct {
		Version string
		Length  int
	}{Version: jpegrVersion, Length: gainMapLen})
}

var (
	reVersion    = regexp.MustCompile(`hdrgm:Version="([^"]+)"`)
	reGainMapMin = regexp.MustCompile(`hdrgm:GainMapMin="([^"]+)"`)
	reGainMapMax = regexp.MustCompile(`hdrgm:GainMapMax="([^"]+)"`)
	reGamma      = regexp.MustCompile(`hdrgm:Gamma="([^"]+)"`)
	reOffsetSDR  = regexp.MustCompile(`hdrgm:OffsetSDR="([^"]+)"`)
	reOffsetHDR  = regexp.MustCompile(`hdrgm:OffsetHDR="([^"]+)"`)
	reHDRCapMin  = regexp.MustCompile(`hdrgm:HDRCapacityMin="([^"]+)"`)
	reHDRCapMax  = regexp.MustCompile(`hdrgm:HDRCapacityMax="([^"]+)"`)
	reBaseIsHDR  = regexp.MustCompile(`hdrgm:BaseRenditionIsHDR="([^"]+)"`)
	reItemLength = regexp.MustCompile(`Item:Semantic="GainMap"[^>]*Item:Length="(\d+)"`)
)

// ParseGainMapXMP reads hdrgm attributes from an APP1 payload. Version,
// GainMapMax and HDRCapacityMax are required.
func ParseGainMapXMP(app1 []byte) (*GainMapXMP, error) {
	if len(app1) < len(xmpNamespace)+2 {
		return nil, errors.New("xmp block too small")
	}
	if !strings.HasPrefix(string(app1), xmpNamespace+"\x00") {
		return nil, errors.New("xmp namespace mismatch")
	}
	xml := string(app1[len(xmpNamespace)+1:])

	meta := &GainMapXMP{
		Gamma:     DefaultMapGamma,
		OffsetSDR: DefaultOffsetSDR,
		OffsetHDR: DefaultOffsetHDR,
	}

	getStr := func(re *regexp.Regexp) (string, bool) {
		m := re.FindStringSubmatch(xml)
		if len(m) != 2 {
			return "", false
		}
		return m[1], true
	}
	getFloat := func(name string, re *regexp.Regexp, dst *float32, required bool) error {
		str, ok := getStr(re)
		if !ok {
			if required {
				return errors.Errorf("xmp missing %s", name)
			}
			return nil
		}
		v, err := strconv.ParseFloat(str, 32)
		if err != nil {
			return errors.Wrapf(err, "xmp %q", str)
		}
		*dst = float32(v)
		return nil
	}

	v, ok := getStr(reVersion)
	if !ok {
		return nil, errors.New("xmp missing Version")
	}
	meta.Version = v

	for _, f := range []struct {
		name     string
		re       *regexp.Regexp
		dst      *float32
		required bool
	}{
		{"GainMapMax", reGainMapMax, &meta.GainMapMax, true},
		{"HDRCapacityMax", reHDRCapMax, &meta.HDRCapacityMax, true},
		{"GainMapMin", reGainMapMin, &meta.GainMapMin, false},
		{"Gamma", reGamma, &meta.Gamma, false},
		{"OffsetSDR", reOffsetSDR, &meta.OffsetSDR, false},
		{"OffsetHDR", reOffsetHDR, &meta.OffsetHDR, false},
		{"HDRCapacityMin", reHDRCapMin, &meta.HDRCapacityMin, false},
	} {
		if err := getFloat(f.name, f.re, f.dst, f.required); err != nil {
			return nil, err
		}
	}
	if v, ok := getStr(reBaseIsHDR); ok {
		meta.BaseRenditionIsHDR = v == "True"
	}
	return meta, nil
}

// containerGainMapLength returns the Item:Length advertised for the gain map.
func containerGainMapLength(app1 []byte) (int, bool) {
	m := reItemLength.FindSubmatch(app1)
	if len(m) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, false
	}
	return n, true
}
