package services

import (
	"encoding/base64"
	"strings"

	"rsc.io/qr"
)

// RenderQRBase64 encodes code as a PNG QR image at level M. The output is
// deterministic for a given code; "" means the code could not be encoded.
func RenderQRBase64(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	c, err := qr.Encode(code, qr.M)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(c.PNG())
}
