// Package gpu enumerates Intel graphics devices via sysfs and selects the
// card to attach to.
package gpu

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	drmClassPath = "class/drm"

	intelVendorID  = "8086"
	integratedSlot = "0000:00:02.0"
)

// Card describes one Intel GPU device discovered via sysfs.
type Card struct {
	ID      string `json:"id"`
	PCISlot string `json:"pci_slot"`
	PCIID   string `json:"pci_id"`
	Name    string `json:"name"`
	Driver  string `json:"driver"`
}

// Integrated reports whether the card sits on the integrated graphics slot.
func (c Card) Integrated() bool {
	return c.PCISlot == integratedSlot
}

// PMUName derives the perf PMU device name: the literal "i915" for the
// integrated GPU, or the PCI slot prefixed with "i915_" and every ':'
// replaced by '_' for discrete cards.
func (c Card) PMUName() string {
	if c.PCISlot == "" || c.Integrated() {
		return "i915"
	}
	return "i915_" + strings.ReplaceAll(c.PCISlot, ":", "_")
}

// Scan enumerates DRM cards under the provided sysfs root, keeping Intel
// devices only. A missing DRM class directory yields an empty result.
func Scan(root string, logger *slog.Logger) ([]Card, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sysRoot, err := os.OpenRoot(root)
	if err != nil {
		return nil, fmt.Errorf("open sysfs root: %w", err)
	}
	defer sysRoot.Close()

	entries, err := fs.ReadDir(sysRoot.FS(), drmClassPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			logger.Warn("drm class path missing", "path", filepath.Join(root, drmClassPath))
			return nil, nil
		}
		return nil, fmt.Errorf("read drm class dir: %w", err)
	}

	var cards []Card
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "card") {
			continue
		}
		if strings.ContainsRune(name, '-') {
			continue
		}
		if !allDigits(name[4:]) {
			continue
		}
		if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		cardRoot, err := sysRoot.OpenRoot(filepath.Join(drmClassPath, name))
		if err != nil {
			logger.Warn("failed to open card root", "card", name, "err", err)
			continue
		}

		card, err := loadCard(name, cardRoot)
		if closeErr := cardRoot.Close(); closeErr != nil {
			logger.Debug("failed to close card root", "card", name, "err", closeErr)
		}
		if err != nil {
			logger.Warn("failed to load card info", "card", name, "err", err)
			continue
		}

		if !strings.HasPrefix(strings.ToLower(card.PCIID), intelVendorID+":") {
			continue
		}
		cards = append(cards, card)
	}

	return cards, nil
}

func loadCard(cardID string, cardRoot *os.Root) (Card, error) {
	deviceRoot, err := cardRoot.OpenRoot("device")
	if err != nil {
		return Card{}, fmt.Errorf("open device root: %w", err)
	}
	defer deviceRoot.Close()

	card := Card{ID: cardID}

	if data, err := deviceRoot.ReadFile("uevent"); err == nil {
		text := string(data)
		card.PCISlot = parseKeyValue(text, "PCI_SLOT_NAME")
		card.PCIID = parseKeyValue(text, "PCI_ID")
		card.Driver = parseKeyValue(text, "DRIVER")
	}

	if card.PCIID == "" {
		if vendor, err := readTrim(deviceRoot, "vendor"); err == nil {
			if device, err := readTrim(deviceRoot, "device"); err == nil {
				card.PCIID = formatHexPair(vendor, device)
			}
		}
	}

	vendorID, deviceID := splitPCIIdentifier(card.PCIID)
	if resolved := lookupName(vendorID, deviceID); resolved != "" {
		card.Name = resolved
	} else {
		card.Name = card.Driver
	}

	return card, nil
}

func parseKeyValue(data, key string) string {
	prefix := key + "="
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(line, prefix))
		}
	}
	return ""
}

func readTrim(root *os.Root, name string) (string, error) {
	data, err := root.ReadFile(name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func formatHexPair(vendor, device string) string {
	return strings.TrimPrefix(vendor, "0x") + ":" + strings.TrimPrefix(device, "0x")
}

func allDigits(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
