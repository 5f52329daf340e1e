// Package credentials embeds the Wi-Fi network the firmware joins.
//
// Write the network name to ssid.text and the WPA2 passphrase to
// password.text in this directory before flashing. Leave password.text
// empty for open networks. The committed files are empty placeholders, do
// not commit real credentials.
package credentials

import (
	_ "embed"
	"strings"
)

var (
	//go:embed ssid.text
	ssid string
	//go:embed password.text
	pass string
)

// SSID returns the contents of ssid.text without surrounding whitespace.
func SSID() string {
	return strings.TrimSpace(ssid)
}

// Password returns the contents of password.text. Only the trailing
// newline is removed since passphrases may contain spaces.
func Password() string {
	return strings.TrimRight(pass, "\r\n")
}
