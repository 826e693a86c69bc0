// Package export builds portable inspection bundles: the current
// device, client, and exportable plugin data packed into a single
// integrity-checked file that support staff can replay.
package export

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode encodes with deterministic CBOR (sorted map keys, smallest
// integer widths), so the same bundle content always produces the same
// bytes and the payload digest is stable.
var encMode cbor.EncMode

// decMode accepts standard CBOR and ignores unknown fields, so newer
// bundles stay readable by older builds.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: cbor encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("export: cbor decoder initialization failed: " + err.Error())
	}
}
