package genieacs

import "strings"

const wlanRoot = "InternetGatewayDevice.LANDevice.1.WLANConfiguration"

// Dialect maps a router family to its Wi-Fi parameter layout.
type Dialect struct {
	Name              string
	ManufacturerHints []string
	ModelHints        []string
	Index2G           string
	Index5G           string
	// NestedPassphrase selects PreSharedKey.1.KeyPassphrase over PreSharedKey.
	NestedPassphrase bool
}

// DefaultDialect is the plain TR-098 layout.
var DefaultDialect = Dialect{Name: "tr098", Index2G: "1", Index5G: "5"}

// Dialects is checked in order; the first match wins. Append to support a
// new vendor.
var Dialects = []Dialect{
	{Name: "intelbras", ManufacturerHints: []string{"intelbras"}, Index2G: "6", Index5G: "1"},
	{Name: "huawei", ManufacturerHints: []string{"huawei"}, ModelHints: []string{"hg8145"}, Index2G: "1", Index5G: "5", NestedPassphrase: true},
}

// DetectDialect matches manufacturer and model substrings case-insensitively.
func DetectDialect(manufacturer, model string) Dialect {
	m := strings.ToLower(manufacturer)
	mo := strings.ToLower(model)
	for _, d := range Dialects {
		for _, h := range d.ManufacturerHints {
			if m != "" && strings.Contains(m, h) {
				return d
			}
		}
		for _, h := range d.ModelHints {
			if mo != "" && strings.Contains(mo, h) {
				return d
			}
		}
	}
	return DefaultDialect
}

func (d Dialect) WLANPath(index string) string {
	return wlanRoot + "." + index
}

func (d Dialect) PassphrasePath(index string) string {
	if d.NestedPassphrase {
		return d.WLANPath(index) + ".PreSharedKey.1.KeyPassphrase"
	}
	return d.WLANPath(index) + ".PreSharedKey"
}
