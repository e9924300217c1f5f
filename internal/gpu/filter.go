package gpu

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDeviceNotFound means the filter expression matched no scanned card.
var ErrDeviceNotFound = errors.New("device not found")

// Match selects the card for a device filter expression. An empty filter
// prefers the first discrete card and falls back to the integrated one.
//
// A filter is either a bare DRM id ("card1") or comma-separated key=value
// terms, optionally prefixed with "pci:". Supported keys: vendor, device,
// slot and card.
func Match(cards []Card, filter string) (Card, error) {
	filter = strings.TrimSpace(filter)

	if filter == "" {
		for _, card := range cards {
			if !card.Integrated() {
				return card, nil
			}
		}
		for _, card := range cards {
			if card.Integrated() {
				return card, nil
			}
		}
		return Card{}, ErrDeviceNotFound
	}

	expr, _ := strings.CutPrefix(filter, "pci:")

	if !strings.ContainsRune(expr, '=') {
		for _, card := range cards {
			if card.ID == expr {
				return card, nil
			}
		}
		return Card{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, filter)
	}

	for _, card := range cards {
		if matchTerms(card, expr) {
			return card, nil
		}
	}
	return Card{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, filter)
}

func matchTerms(card Card, expr string) bool {
	vendorID, deviceID := splitPCIIdentifier(card.PCIID)

	for _, term := range strings.Split(expr, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(term), "=")
		if !ok {
			return false
		}
		value = strings.TrimSpace(value)

		switch strings.TrimSpace(key) {
		case "vendor":
			if normalizePCIID(value) != normalizePCIID(vendorID) {
				return false
			}
		case "device":
			if normalizePCIID(value) != normalizePCIID(deviceID) {
				return false
			}
		case "slot":
			if !strings.EqualFold(value, card.PCISlot) {
				return false
			}
		case "card":
			if card.ID != "card"+value {
				return false
			}
		default:
			return false
		}
	}
	return true
}
