package settings

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record keys.
const (
	keyBoot = "boot"
	keySync = "sync"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() { //nolint:gochecknoinits // Codec modes are fixed for the process.
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("settings cbor encoder: %v", err))
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("settings cbor decoder: %v", err))
	}
}

// bootRecord is the stored form of Boot.
type bootRecord struct {
	Count     uint64    `cbor:"1,keyasint"`
	ID        []byte    `cbor:"2,keyasint"`
	StartedAt time.Time `cbor:"3,keyasint"`
}

// syncRecord is the stored form of Sync.
type syncRecord struct {
	Offset int64     `cbor:"1,keyasint"`
	At     time.Time `cbor:"2,keyasint"`
}
