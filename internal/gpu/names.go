package gpu

import (
	"strings"
	"sync"

	"github.com/jaypipes/pcidb"
)

var (
	pciOnce sync.Once
	pciDB   *pcidb.PCIDB
	pciErr  error
)

// lookupName resolves a vendor:device pair to the marketing codename via
// the system PCI database.
func lookupName(vendorID, deviceID string) string {
	vendorID = normalizePCIID(vendorID)
	deviceID = normalizePCIID(deviceID)
	if vendorID == "" || deviceID == "" {
		return ""
	}

	db := loadPCIDatabase()
	if db == nil {
		return ""
	}

	product, ok := db.Products[vendorID+deviceID]
	if !ok || product == nil {
		return ""
	}
	return product.Name
}

func loadPCIDatabase() *pcidb.PCIDB {
	pciOnce.Do(func() {
		pciDB, pciErr = pcidb.New()
	})
	if pciErr != nil || pciDB == nil {
		return nil
	}
	return pciDB
}

func normalizePCIID(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "0x")
	value = strings.TrimPrefix(value, "0X")
	if value == "" {
		return ""
	}
	value = strings.ToLower(value)
	if len(value) < 4 {
		value = strings.Repeat("0", 4-len(value)) + value
	}
	return value
}

func splitPCIIdentifier(pciID string) (vendorID, deviceID string) {
	parts := strings.SplitN(pciID, ":", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
