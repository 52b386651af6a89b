package lnurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/LemonSchneid/Bit-Indie-sub000/bech32"
)

// ResolvePayEndpoint turns a payment destination into the HTTPS endpoint
// serving its LNURL-pay parameters. Resolution is pure: no network I/O.
func ResolvePayEndpoint(dest Destination) (string, error) {
	if dest.LNURL != "" {
		return resolveLNURL(dest.LNURL)
	}
	if dest.LightningAddress != "" {
		return resolveLightningAddress(dest.LightningAddress)
	}
	return "", NewError(ErrCodeMissingDestination, "no payment destination configured", nil)
}

func resolveLNURL(raw string) (string, error) {
	if strings.HasPrefix(strings.ToLower(raw), TokenPrefix) {
		_, words, err := bech32.Decode(raw)
		if err != nil {
			return "", NewError(ErrCodeInvalidEncoding, fmt.Sprintf("malformed lnurl token: %v", err), nil)
		}
		decoded, err := bech32.ConvertBits(words, 5, 8, false)
		if err != nil {
			return "", NewError(ErrCodeInvalidEncoding, fmt.Sprintf("malformed lnurl token: %v", err), nil)
		}
		return string(decoded), nil
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw, nil
	}
	return "", NewError(ErrCodeUnsupportedDestination, "unsupported lnurl format", map[string]interface{}{
		"lnurl": raw,
	})
}

func resolveLightningAddress(address string) (string, error) {
	parts := strings.Split(address, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", NewError(ErrCodeInvalidAddress, fmt.Sprintf("invalid lightning address %q", address), nil)
	}
	name, domain := parts[0], parts[1]
	base := domain
	if !strings.HasPrefix(domain, "http://") && !strings.HasPrefix(domain, "https://") {
		base = "https://" + domain
	}
	return fmt.Sprintf("%s/.well-known/lnurlp/%s", base, url.PathEscape(name)), nil
}
